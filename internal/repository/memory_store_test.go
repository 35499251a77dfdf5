package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
)

func newTestStore(opts MemoryOptions) *MemoryStore {
	return NewMemoryStore(opts,
		model.ParkingLot{Name: "North Deck", Location: "North", Capacity: 2},
		model.ParkingLot{Name: "Library Lot", Location: "Central", Capacity: 5},
	)
}

func TestMemoryStore_CommitAppliesWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{})

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	lot, err := tx.LockLot(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, tx.SetReservedCount(ctx, lot.ID, 1))

	r := model.Reservation{UserID: 7, LotID: 1, StartTime: time.Now(), EndTime: time.Now().Add(time.Hour), Price: decimal.NewFromInt(2), Status: model.StatusCompleted}
	require.NoError(t, tx.InsertReservation(ctx, &r))
	assert.NotZero(t, r.ID)
	p := model.Payment{ReservationID: r.ID, Kind: model.PaymentCharge, Amount: r.Price}
	require.NoError(t, tx.InsertPayment(ctx, &p))

	// nothing is visible before commit
	got, err := s.GetLot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReservedCount)
	_, err = s.GetReservation(ctx, r.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	require.NoError(t, tx.Commit())

	got, _ = s.GetLot(ctx, 1)
	assert.Equal(t, 1, got.ReservedCount)
	stored, err := s.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), stored.UserID)
	pays, err := s.ListPayments(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, pays, 1)
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{})

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.LockLot(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, tx.SetReservedCount(ctx, 2, 3))
	require.NoError(t, tx.Rollback())

	got, _ := s.GetLot(ctx, 2)
	assert.Equal(t, 0, got.ReservedCount)

	assert.ErrorIs(t, tx.Rollback(), ErrTxDone)
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	_, err = tx.LockLot(ctx, 2)
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestMemoryStore_SetReservedCountBounds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{})
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.Error(t, tx.SetReservedCount(ctx, 1, 1), "lot must be locked first")
	_, err = tx.LockLot(ctx, 1)
	require.NoError(t, err)
	assert.Error(t, tx.SetReservedCount(ctx, 1, 3))
	assert.Error(t, tx.SetReservedCount(ctx, 1, -1))
	assert.NoError(t, tx.SetReservedCount(ctx, 1, 2))

	lot, err := tx.LockLot(ctx, 1)
	require.NoError(t, err, "locking twice is allowed")
	assert.Equal(t, 2, lot.ReservedCount, "tx reads its own writes")
}

func TestMemoryStore_LockUnknownLot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{})
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.LockLot(ctx, 99)
	assert.ErrorIs(t, err, ErrLotNotFound)
	_, err = tx.LockReservation(ctx, 99)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestMemoryStore_LockTimeoutIsBusy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{LockTimeout: 20 * time.Millisecond})

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = holder.LockLot(ctx, 1)
	require.NoError(t, err)

	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = waiter.LockLot(ctx, 1)
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, IsTransient(err))

	// other lots are not blocked
	_, err = waiter.LockLot(ctx, 2)
	assert.NoError(t, err)
	require.NoError(t, waiter.Rollback())

	require.NoError(t, holder.Commit())
	next, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = next.LockLot(ctx, 1)
	assert.NoError(t, err)
	require.NoError(t, next.Rollback())
}

func TestMemoryStore_BeginAcquireTimeout(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{MaxConns: 1, AcquireTimeout: 20 * time.Millisecond})

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.Begin(ctx)
	assert.True(t, errors.Is(err, ErrBusy))

	require.NoError(t, first.Rollback())
	second, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Rollback())
}

func TestMemoryStore_LockReservationSeesCommittedStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{})
	r := s.ImportReservation(model.Reservation{UserID: 1, LotID: 1, Status: model.StatusCompleted})

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.LockReservation(ctx, r.ID)
	require.NoError(t, err)
	require.NoError(t, tx.SetReservationStatus(ctx, r.ID, model.StatusCancelled))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()
	got, err := tx2.LockReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

func TestMemoryStore_DemandAndWindows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{})
	// 2024-01-01 was a Monday
	mon9 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s.ImportReservation(model.Reservation{LotID: 1, StartTime: mon9, EndTime: mon9.Add(2 * time.Hour), Status: model.StatusCompleted})
	s.ImportReservation(model.Reservation{LotID: 1, StartTime: mon9.Add(30 * time.Minute), EndTime: mon9.Add(time.Hour), Status: model.StatusCompleted})
	s.ImportReservation(model.Reservation{LotID: 1, StartTime: mon9, EndTime: mon9.Add(time.Hour), Status: model.StatusCancelled})
	s.ImportReservation(model.Reservation{LotID: 2, StartTime: mon9, EndTime: mon9.Add(time.Hour), Status: model.StatusCompleted})

	buckets, err := s.DemandBuckets(ctx, 1, mon9.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, DemandBucket{Weekday: 1, Hour: 9, Count: 2}, buckets[0])

	buckets, err = s.DemandBuckets(ctx, 1, mon9.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, buckets)

	windows, err := s.ReservationWindows(ctx, 1, mon9)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.True(t, windows[0].Start.Equal(mon9))
}

func TestMemoryStore_ListReservationsFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(MemoryOptions{})
	s.ImportReservation(model.Reservation{UserID: 1, LotID: 1, Status: model.StatusCompleted})
	s.ImportReservation(model.Reservation{UserID: 2, LotID: 1, Status: model.StatusCompleted})
	s.ImportReservation(model.Reservation{UserID: 1, LotID: 2, Status: model.StatusCancelled})

	all, err := s.ListReservations(ctx, ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	uid, lid := uint64(1), uint64(2)
	mine, _ := s.ListReservations(ctx, ReservationFilter{UserID: &uid})
	assert.Len(t, mine, 2)
	both, _ := s.ListReservations(ctx, ReservationFilter{UserID: &uid, LotID: &lid})
	require.Len(t, both, 1)
	assert.Equal(t, model.StatusCancelled, both[0].Status)
}
