package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// MemoryOptions bounds the waits of a MemoryStore. Zero values fall back to
// the defaults used by the MySQL pool configuration.
type MemoryOptions struct {
	MaxConns       int           // concurrent open transactions
	AcquireTimeout time.Duration // wait for a free transaction slot
	LockTimeout    time.Duration // wait for a lot lock
}

// MemoryStore is an in-process Store. Each lot has its own lock so
// transactions on different lots run in parallel, and a bounded slot pool
// plays the role of the connection pool. Writes made through a transaction
// are buffered and applied atomically on Commit.
type MemoryStore struct {
	mu           sync.RWMutex
	lots         map[uint64]model.ParkingLot
	reservations map[uint64]model.Reservation
	payments     []model.Payment
	lotLocks     map[uint64]chan struct{}
	nextLot      uint64
	nextRes      uint64
	nextPay      uint64

	conns          chan struct{}
	acquireTimeout time.Duration
	lockTimeout    time.Duration
}

// NewMemoryStore returns an empty store seeded with the given lots. Lots
// without an ID are numbered in order.
func NewMemoryStore(opts MemoryOptions, lots ...model.ParkingLot) *MemoryStore {
	if opts.MaxConns <= 0 {
		opts.MaxConns = 20
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 5 * time.Second
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	s := &MemoryStore{
		lots:           make(map[uint64]model.ParkingLot),
		reservations:   make(map[uint64]model.Reservation),
		lotLocks:       make(map[uint64]chan struct{}),
		conns:          make(chan struct{}, opts.MaxConns),
		acquireTimeout: opts.AcquireTimeout,
		lockTimeout:    opts.LockTimeout,
	}
	for _, l := range lots {
		s.AddLot(l)
	}
	return s
}

// AddLot registers a lot and returns it with its assigned ID.
func (s *MemoryStore) AddLot(l model.ParkingLot) model.ParkingLot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		s.nextLot++
		l.ID = s.nextLot
	} else if l.ID > s.nextLot {
		s.nextLot = l.ID
	}
	s.lots[l.ID] = l
	if _, ok := s.lotLocks[l.ID]; !ok {
		s.lotLocks[l.ID] = make(chan struct{}, 1)
	}
	return l
}

// ImportReservation stores a historical reservation as-is, bypassing the
// ledger. It exists for seeding demand history.
func (s *MemoryStore) ImportReservation(r model.Reservation) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRes++
	r.ID = s.nextRes
	s.reservations[r.ID] = r
	return r
}

// Begin takes a transaction slot, waiting at most AcquireTimeout.
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := acquire(ctx, s.conns, s.acquireTimeout); err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &memoryTx{
		s:      s,
		held:   make(map[uint64]chan struct{}),
		counts: make(map[uint64]int),
		status: make(map[uint64]string),
	}, nil
}

// acquire sends into a buffered channel used as a semaphore. The wait is
// bounded by timeout and ctx; a timeout maps to ErrBusy.
func acquire(ctx context.Context, sem chan struct{}, timeout time.Duration) error {
	select {
	case sem <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case sem <- struct{}{}:
		return nil
	case <-t.C:
		return fmt.Errorf("%w: wait exceeded %s", ErrBusy, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MemoryStore) GetLot(_ context.Context, id uint64) (model.ParkingLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lots[id]
	if !ok {
		return model.ParkingLot{}, ErrLotNotFound
	}
	return l, nil
}

func (s *MemoryStore) ListLots(_ context.Context) ([]model.ParkingLot, error) {
	s.mu.RLock()
	out := make([]model.ParkingLot, 0, len(s.lots))
	for _, l := range s.lots {
		out = append(out, l)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetReservation(_ context.Context, id uint64) (model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, ErrReservationNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListReservations(_ context.Context, f ReservationFilter) ([]model.Reservation, error) {
	s.mu.RLock()
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.LotID != nil && r.LotID != *f.LotID {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListPayments(_ context.Context, reservationID uint64) ([]model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Payment, 0, 2)
	for _, p := range s.payments {
		if p.ReservationID == reservationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) DemandBuckets(_ context.Context, lotID uint64, since time.Time) ([]DemandBucket, error) {
	counts := make(map[[2]int]int)
	s.mu.RLock()
	for _, r := range s.reservations {
		if r.LotID != lotID || !r.Active() || r.StartTime.Before(since) {
			continue
		}
		st := r.StartTime.UTC()
		counts[[2]int{int(st.Weekday()), st.Hour()}]++
	}
	s.mu.RUnlock()
	out := make([]DemandBucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, DemandBucket{Weekday: k[0], Hour: k[1], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (s *MemoryStore) ReservationWindows(_ context.Context, lotID uint64, since time.Time) ([]Window, error) {
	s.mu.RLock()
	out := make([]Window, 0)
	for _, r := range s.reservations {
		if r.LotID != lotID || !r.Active() || !r.EndTime.After(since) {
			continue
		}
		out = append(out, Window{Start: r.StartTime.UTC(), End: r.EndTime.UTC()})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *MemoryStore) allocReservationID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRes++
	return s.nextRes
}

func (s *MemoryStore) allocPaymentID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPay++
	return s.nextPay
}

// memoryTx buffers writes until Commit. Reads through the transaction see
// its own pending writes layered over committed state.
type memoryTx struct {
	s            *MemoryStore
	held         map[uint64]chan struct{}
	counts       map[uint64]int
	status       map[uint64]string
	reservations []model.Reservation
	payments     []model.Payment
	done         bool
}

func (t *memoryTx) LockLot(ctx context.Context, id uint64) (model.ParkingLot, error) {
	if t.done {
		return model.ParkingLot{}, ErrTxDone
	}
	if _, ok := t.held[id]; !ok {
		t.s.mu.RLock()
		lk, ok := t.s.lotLocks[id]
		t.s.mu.RUnlock()
		if !ok {
			return model.ParkingLot{}, ErrLotNotFound
		}
		if err := acquire(ctx, lk, t.s.lockTimeout); err != nil {
			return model.ParkingLot{}, fmt.Errorf("lock lot %d: %w", id, err)
		}
		t.held[id] = lk
	}
	t.s.mu.RLock()
	lot := t.s.lots[id]
	t.s.mu.RUnlock()
	if n, ok := t.counts[id]; ok {
		lot.ReservedCount = n
	}
	return lot, nil
}

func (t *memoryTx) LockReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	if t.done {
		return model.Reservation{}, ErrTxDone
	}
	r, ok := t.lookupReservation(id)
	if !ok {
		return model.Reservation{}, ErrReservationNotFound
	}
	// A reservation is guarded by its lot's lock. Re-read once the lock is
	// held so a concurrent cancellation that committed meanwhile is seen.
	if _, err := t.LockLot(ctx, r.LotID); err != nil {
		return model.Reservation{}, err
	}
	r, _ = t.lookupReservation(id)
	return r, nil
}

func (t *memoryTx) lookupReservation(id uint64) (model.Reservation, bool) {
	t.s.mu.RLock()
	r, ok := t.s.reservations[id]
	t.s.mu.RUnlock()
	if !ok {
		for _, p := range t.reservations {
			if p.ID == id {
				r, ok = p, true
				break
			}
		}
	}
	if !ok {
		return model.Reservation{}, false
	}
	if st, changed := t.status[id]; changed {
		r.Status = st
	}
	return r, true
}

func (t *memoryTx) InsertReservation(_ context.Context, r *model.Reservation) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.held[r.LotID]; !ok {
		return fmt.Errorf("insert reservation: lot %d not locked", r.LotID)
	}
	r.ID = t.s.allocReservationID()
	t.reservations = append(t.reservations, *r)
	return nil
}

func (t *memoryTx) InsertPayment(_ context.Context, p *model.Payment) error {
	if t.done {
		return ErrTxDone
	}
	p.ID = t.s.allocPaymentID()
	t.payments = append(t.payments, *p)
	return nil
}

func (t *memoryTx) SetReservedCount(_ context.Context, lotID uint64, n int) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.held[lotID]; !ok {
		return fmt.Errorf("set reserved count: lot %d not locked", lotID)
	}
	t.s.mu.RLock()
	capacity := t.s.lots[lotID].Capacity
	t.s.mu.RUnlock()
	if n < 0 || n > capacity {
		return fmt.Errorf("set reserved count: %d outside [0,%d]", n, capacity)
	}
	t.counts[lotID] = n
	return nil
}

func (t *memoryTx) SetReservationStatus(_ context.Context, id uint64, status string) error {
	if t.done {
		return ErrTxDone
	}
	r, ok := t.lookupReservation(id)
	if !ok {
		return ErrReservationNotFound
	}
	if _, held := t.held[r.LotID]; !held {
		return fmt.Errorf("set status: reservation %d not locked", id)
	}
	t.status[id] = status
	return nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.s.mu.Lock()
	for id, n := range t.counts {
		l := t.s.lots[id]
		l.ReservedCount = n
		t.s.lots[id] = l
	}
	for _, r := range t.reservations {
		t.s.reservations[r.ID] = r
	}
	for id, st := range t.status {
		r := t.s.reservations[id]
		r.Status = st
		t.s.reservations[id] = r
	}
	t.s.payments = append(t.s.payments, t.payments...)
	t.s.mu.Unlock()
	t.finish()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.finish()
	return nil
}

func (t *memoryTx) finish() {
	t.done = true
	for _, lk := range t.held {
		<-lk
	}
	t.held = nil
	<-t.s.conns
}
