package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

type brokenStore struct{ repository.Store }

func (brokenStore) GetLot(context.Context, uint64) (model.ParkingLot, error) {
	return model.ParkingLot{}, errors.New("connection reset")
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore(repository.MemoryOptions{},
		model.ParkingLot{Name: "Open", Capacity: 3, ReservedCount: 1},
		model.ParkingLot{Name: "Full", Capacity: 2, ReservedCount: 2},
	)
	l := New(s, nil)

	a := l.CheckAvailability(ctx, 1)
	assert.True(t, a.Available)
	assert.Equal(t, ReasonAvailable, a.Reason)
	assert.Equal(t, 2, a.Free)

	a = l.CheckAvailability(ctx, 2)
	assert.False(t, a.Available)
	assert.Equal(t, ReasonFull, a.Reason)
	assert.Equal(t, 0, a.Free)

	a = l.CheckAvailability(ctx, 42)
	assert.False(t, a.Available)
	assert.Equal(t, ReasonNotFound, a.Reason)

	a = New(brokenStore{}, nil).CheckAvailability(ctx, 1)
	assert.False(t, a.Available)
	assert.Equal(t, ReasonError, a.Reason)
}

func TestIncrementAndDecrement(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore(repository.MemoryOptions{}, model.ParkingLot{Name: "Small", Capacity: 1})
	l := New(s, nil)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	lot, err := l.Lock(ctx, tx, 1)
	require.NoError(t, err)

	require.NoError(t, l.Increment(ctx, tx, &lot))
	assert.Equal(t, 1, lot.ReservedCount)
	assert.ErrorIs(t, l.Increment(ctx, tx, &lot), ErrLotFull)
	assert.Equal(t, 1, lot.ReservedCount)
	require.NoError(t, tx.Commit())

	got, _ := s.GetLot(ctx, 1)
	assert.Equal(t, 1, got.ReservedCount)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	lot, err = l.Lock(ctx, tx, 1)
	require.NoError(t, err)
	require.NoError(t, l.Decrement(ctx, tx, &lot))
	assert.Equal(t, 0, lot.ReservedCount)
	// the floor holds even when the counter is already zero
	require.NoError(t, l.Decrement(ctx, tx, &lot))
	assert.Equal(t, 0, lot.ReservedCount)
	require.NoError(t, tx.Commit())

	got, _ = s.GetLot(ctx, 1)
	assert.Equal(t, 0, got.ReservedCount)
}

func TestLockBusy(t *testing.T) {
	ctx := context.Background()
	s := repository.NewMemoryStore(repository.MemoryOptions{LockTimeout: 10 * time.Millisecond}, model.ParkingLot{Name: "Small", Capacity: 1})
	l := New(s, nil)

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback()
	_, err = l.Lock(ctx, holder, 1)
	require.NoError(t, err)

	other, err := s.Begin(ctx)
	require.NoError(t, err)
	defer other.Rollback()
	_, err = l.Lock(ctx, other, 1)
	assert.True(t, repository.IsTransient(err))
}
