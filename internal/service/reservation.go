// Package service holds the reservation transaction manager: the only
// code allowed to create reservations, cancel them, and move the lot
// counters that go with them.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/parking-reservation/internal/ledger"
	"github.com/iliyamo/parking-reservation/internal/metrics"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/refund"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/retry"
)

// DefaultRatePerHour is the hourly price when none is configured.
var DefaultRatePerHour = decimal.NewFromInt(2)

// Principal is the caller on whose behalf an operation runs.
type Principal struct {
	UserID  uint64
	IsAdmin bool
}

// CancelResult describes a committed cancellation.
type CancelResult struct {
	ReservationID uint64          `json:"reservation_id"`
	Message       string          `json:"message"`
	RefundTier    refund.Tier     `json:"refund_tier"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
}

// Options configures a ReservationService. Zero values get defaults.
type Options struct {
	RatePerHour    decimal.Decimal
	Retry          retry.Policy
	Publisher      queue.Publisher
	AsyncEvents    bool          // publish from a goroutine instead of inline
	PublishTimeout time.Duration // bound on a single publish
	Clock          func() time.Time
	Logger         *log.Logger
}

// ReservationService runs every reservation mutation as one exclusive,
// lot-scoped transaction and retries the whole attempt on transient
// store errors.
type ReservationService struct {
	store          repository.Store
	ledger         *ledger.Ledger
	rate           decimal.Decimal
	retry          retry.Policy
	publisher      queue.Publisher
	async          bool
	publishTimeout time.Duration
	now            func() time.Time
	logger         *log.Logger
	wg             sync.WaitGroup
}

// NewReservationService wires a service over store and l.
func NewReservationService(store repository.Store, l *ledger.Ledger, opts Options) *ReservationService {
	if opts.RatePerHour.IsZero() {
		opts.RatePerHour = DefaultRatePerHour
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = queue.NopPublisher{}
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New("reservation")
	}
	return &ReservationService{
		store:          store,
		ledger:         l,
		rate:           opts.RatePerHour,
		retry:          opts.Retry,
		publisher:      opts.Publisher,
		async:          opts.AsyncEvents,
		publishTimeout: opts.PublishTimeout,
		now:            opts.Clock,
		logger:         opts.Logger,
	}
}

// Price returns rate * hours rounded to two decimals.
func (s *ReservationService) Price(start, end time.Time) (decimal.Decimal, error) {
	if !end.After(start) {
		return decimal.Zero, ErrInvalidWindow
	}
	hours := decimal.NewFromFloat(end.Sub(start).Hours())
	return s.rate.Mul(hours).Round(2), nil
}

// CreateReservation books one space in lotID for [start, end). The lot is
// re-checked under its lock; the reservation row, its charge and the
// counter increment commit together or not at all.
func (s *ReservationService) CreateReservation(ctx context.Context, userID, lotID uint64, start, end time.Time) (model.Reservation, error) {
	price, err := s.Price(start, end)
	if err != nil {
		metrics.ReservationFailures.WithLabelValues("create", CodeOf(err)).Inc()
		return model.Reservation{}, err
	}

	var (
		out model.Reservation
		lot model.ParkingLot
	)
	err = s.withRetry(ctx, "create", func(ctx context.Context, _ int) error {
		var err error
		out, lot, err = s.createOnce(ctx, userID, lotID, start.UTC(), end.UTC(), price)
		return err
	})
	if err != nil {
		return model.Reservation{}, s.fail("create", err, log.JSON{"user_id": userID, "lot_id": lotID})
	}

	metrics.ReservationsCreated.Inc()
	ledger.Publish(lot)
	s.logger.Infoj(log.JSON{
		"msg":            "reservation created",
		"reservation_id": out.ID,
		"user_id":        userID,
		"lot_id":         lotID,
		"price":          out.Price.StringFixed(2),
		"reserved_count": lot.ReservedCount,
	})
	s.emit(queue.NewReservationEvent(queue.EventReservationCreated, out, s.now()))
	return out, nil
}

func (s *ReservationService) createOnce(ctx context.Context, userID, lotID uint64, start, end time.Time, price decimal.Decimal) (model.Reservation, model.ParkingLot, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Reservation{}, model.ParkingLot{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lot, err := s.ledger.Lock(ctx, tx, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return model.Reservation{}, model.ParkingLot{}, ErrLotNotFound
		}
		return model.Reservation{}, model.ParkingLot{}, err
	}
	// the increment doubles as the capacity check and writes nothing when full
	if err := s.ledger.Increment(ctx, tx, &lot); err != nil {
		if errors.Is(err, ledger.ErrLotFull) {
			return model.Reservation{}, model.ParkingLot{}, ErrLotFull
		}
		return model.Reservation{}, model.ParkingLot{}, err
	}

	now := s.now().UTC()
	res := model.Reservation{
		UserID:    userID,
		LotID:     lotID,
		StartTime: start,
		EndTime:   end,
		Price:     price,
		Status:    model.StatusCompleted,
		CreatedAt: now,
	}
	if err := tx.InsertReservation(ctx, &res); err != nil {
		return model.Reservation{}, model.ParkingLot{}, err
	}
	charge := model.Payment{
		ReservationID: res.ID,
		Kind:          model.PaymentCharge,
		Amount:        price,
		Method:        model.MethodCreditCard,
		Status:        model.PaymentCompleted,
		Reference:     uuid.NewString(),
		PaymentDate:   now,
	}
	if err := tx.InsertPayment(ctx, &charge); err != nil {
		return model.Reservation{}, model.ParkingLot{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Reservation{}, model.ParkingLot{}, err
	}
	committed = true
	return res, lot, nil
}

// CancelReservation cancels a reservation exactly once, releases its space
// and appends a refund payment when the refund schedule grants one.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID uint64, p Principal) (CancelResult, error) {
	var (
		out CancelResult
		res model.Reservation
		lot model.ParkingLot
	)
	err := s.withRetry(ctx, "cancel", func(ctx context.Context, _ int) error {
		var err error
		out, res, lot, err = s.cancelOnce(ctx, reservationID, p)
		return err
	})
	if err != nil {
		return CancelResult{}, s.fail("cancel", err, log.JSON{"reservation_id": reservationID, "user_id": p.UserID})
	}

	metrics.Cancellations.WithLabelValues(string(out.RefundTier)).Inc()
	ledger.Publish(lot)
	s.logger.Infoj(log.JSON{
		"msg":            "reservation cancelled",
		"reservation_id": reservationID,
		"lot_id":         res.LotID,
		"refund_tier":    out.RefundTier,
		"refund":         out.RefundAmount.StringFixed(2),
	})
	ev := queue.NewReservationEvent(queue.EventReservationCancelled, res, s.now())
	ev.RefundTier = string(out.RefundTier)
	ev.RefundAmount = out.RefundAmount.StringFixed(2)
	ev.Message = out.Message
	s.emit(ev)
	return out, nil
}

func (s *ReservationService) cancelOnce(ctx context.Context, id uint64, p Principal) (CancelResult, model.Reservation, model.ParkingLot, error) {
	var zero CancelResult
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return zero, model.Reservation{}, model.ParkingLot{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.LockReservation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return zero, model.Reservation{}, model.ParkingLot{}, ErrNotFound
		}
		return zero, model.Reservation{}, model.ParkingLot{}, err
	}
	if res.Status == model.StatusCancelled {
		return zero, res, model.ParkingLot{}, ErrAlreadyCancelled
	}
	if !p.IsAdmin && res.UserID != p.UserID {
		return zero, res, model.ParkingLot{}, ErrForbidden
	}

	lot, err := s.ledger.Lock(ctx, tx, res.LotID)
	if err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return zero, res, model.ParkingLot{}, integrity("reservation references a missing lot", err)
		}
		return zero, res, model.ParkingLot{}, err
	}

	now := s.now().UTC()
	held := res.Active()
	decision := refund.Evaluate(now, res.StartTime, res.Price)
	if !held {
		decision.Amount = decimal.Zero
	}

	if err := tx.SetReservationStatus(ctx, res.ID, model.StatusCancelled); err != nil {
		return zero, res, lot, err
	}
	if held {
		if err := s.ledger.Decrement(ctx, tx, &lot); err != nil {
			return zero, res, lot, err
		}
	}
	if decision.Amount.IsPositive() {
		rf := model.Payment{
			ReservationID: res.ID,
			Kind:          model.PaymentRefund,
			Amount:        decision.Amount,
			Method:        model.MethodCreditCard,
			Status:        model.PaymentCompleted,
			Reference:     uuid.NewString(),
			PaymentDate:   now,
		}
		if err := tx.InsertPayment(ctx, &rf); err != nil {
			return zero, res, lot, err
		}
	}

	if err := tx.Commit(); err != nil {
		return zero, res, lot, err
	}
	committed = true
	res.Status = model.StatusCancelled
	return CancelResult{
		ReservationID: res.ID,
		Message:       decision.Message,
		RefundTier:    decision.Tier,
		RefundAmount:  decision.Amount,
	}, res, lot, nil
}

// GetReservation returns a reservation visible to p.
func (s *ReservationService) GetReservation(ctx context.Context, id uint64, p Principal) (model.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, internal("load reservation", err)
	}
	if !p.IsAdmin && r.UserID != p.UserID {
		return model.Reservation{}, ErrForbidden
	}
	return r, nil
}

// ListReservations returns the caller's reservations. Admins may pass a
// user id to look at someone else's, or nil to list everything.
func (s *ReservationService) ListReservations(ctx context.Context, p Principal, userID *uint64) ([]model.Reservation, error) {
	f := repository.ReservationFilter{UserID: userID}
	if !p.IsAdmin {
		uid := p.UserID
		f.UserID = &uid
	}
	out, err := s.store.ListReservations(ctx, f)
	if err != nil {
		return nil, internal("list reservations", err)
	}
	return out, nil
}

// ListPayments returns the payment ledger of a reservation visible to p.
func (s *ReservationService) ListPayments(ctx context.Context, reservationID uint64, p Principal) ([]model.Payment, error) {
	if _, err := s.GetReservation(ctx, reservationID, p); err != nil {
		return nil, err
	}
	out, err := s.store.ListPayments(ctx, reservationID)
	if err != nil {
		return nil, internal("list payments", err)
	}
	return out, nil
}

// Wait blocks until asynchronously published events have been handed off.
func (s *ReservationService) Wait() { s.wg.Wait() }

func (s *ReservationService) withRetry(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) error {
	pol := s.retry
	next := pol.OnRetry
	pol.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.TxRetries.WithLabelValues(op).Inc()
		s.logger.Warnj(log.JSON{"msg": "transient store error, retrying", "op": op, "attempt": attempt, "delay": delay.String(), "error": err.Error()})
		if next != nil {
			next(attempt, delay, err)
		}
	}
	return pol.Do(ctx, repository.IsTransient, fn)
}

// fail maps an error from the transaction path onto the service taxonomy
// and records it.
func (s *ReservationService) fail(op string, err error, fields log.JSON) error {
	var (
		se *Error
		ex *retry.ExhaustedError
	)
	switch {
	case errors.As(err, &se):
	case errors.As(err, &ex):
		se = wrap(ErrBusy, err)
	default:
		se = internal(op+" failed", err)
	}
	metrics.ReservationFailures.WithLabelValues(op, se.Code).Inc()

	fields["op"] = op
	fields["code"] = se.Code
	fields["error"] = err.Error()
	switch se.Kind {
	case KindInternal, KindTransient, KindIntegrity:
		fields["msg"] = "reservation operation failed"
		s.logger.Errorj(fields)
	default:
		fields["msg"] = "reservation operation rejected"
		s.logger.Infoj(fields)
	}
	return se
}

func (s *ReservationService) emit(ev queue.ReservationEvent) {
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			metrics.EventsPublished.WithLabelValues(ev.Type, "error").Inc()
			s.logger.Warnj(log.JSON{"msg": "event publish failed", "type": ev.Type, "reservation_id": ev.ReservationID, "error": err.Error()})
			return
		}
		metrics.EventsPublished.WithLabelValues(ev.Type, "ok").Inc()
	}
	if !s.async {
		send()
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		send()
	}()
}
