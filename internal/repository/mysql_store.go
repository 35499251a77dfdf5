package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// MySQL error numbers that signal lock contention rather than a bad
// statement.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// MySQLStore implements Store on MySQL/InnoDB. The write path uses plain
// database/sql with SELECT ... FOR UPDATE so the exclusive row lock on the
// lot serializes every read-then-write of reserved_count. Read-only queries
// and history aggregation go through gorm on the same pool.
type MySQLStore struct {
	db             *sql.DB
	orm            *gorm.DB
	acquireTimeout time.Duration
}

// NewMySQLStore wraps an open pool. acquireTimeout bounds how long Begin
// waits for a pooled connection.
func NewMySQLStore(db *sql.DB, orm *gorm.DB, acquireTimeout time.Duration) *MySQLStore {
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	return &MySQLStore{db: db, orm: orm, acquireTimeout: acquireTimeout}
}

// DB exposes the underlying pool.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// Begin pins a dedicated connection (bounded by acquireTimeout) and opens a
// transaction on it. The transaction itself lives on ctx.
func (s *MySQLStore) Begin(ctx context.Context) (Tx, error) {
	actx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	conn, err := s.db.Conn(actx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no connection within %s", ErrBusy, s.acquireTimeout)
		}
		return nil, classify(err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, classify(err)
	}
	return &mysqlTx{conn: conn, tx: tx}, nil
}

// classify turns InnoDB lock contention into ErrBusy so callers can retry.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == mysqlLockWaitTimeout || me.Number == mysqlDeadlock) {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

func (s *MySQLStore) GetLot(ctx context.Context, id uint64) (model.ParkingLot, error) {
	var lot model.ParkingLot
	if err := s.orm.WithContext(ctx).First(&lot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ParkingLot{}, ErrLotNotFound
		}
		return model.ParkingLot{}, err
	}
	return lot, nil
}

func (s *MySQLStore) ListLots(ctx context.Context) ([]model.ParkingLot, error) {
	var lots []model.ParkingLot
	if err := s.orm.WithContext(ctx).Order("id").Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

func (s *MySQLStore) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	var r model.Reservation
	if err := s.orm.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Reservation{}, ErrReservationNotFound
		}
		return model.Reservation{}, err
	}
	return r, nil
}

func (s *MySQLStore) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	q := s.orm.WithContext(ctx).Order("id")
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.LotID != nil {
		q = q.Where("lot_id = ?", *f.LotID)
	}
	var out []model.Reservation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MySQLStore) ListPayments(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	var out []model.Payment
	err := s.orm.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DemandBuckets aggregates in SQL. DAYOFWEEK is 1-based starting on Sunday.
func (s *MySQLStore) DemandBuckets(ctx context.Context, lotID uint64, since time.Time) ([]DemandBucket, error) {
	const q = `SELECT DAYOFWEEK(start_time) - 1 AS day_of_week,
                      HOUR(start_time) AS hour_of_day,
                      COUNT(*) AS reservation_count
               FROM reservations
               WHERE lot_id = ? AND start_time >= ? AND status IN ?
               GROUP BY day_of_week, hour_of_day
               ORDER BY day_of_week, hour_of_day`
	var out []DemandBucket
	err := s.orm.WithContext(ctx).
		Raw(q, lotID, since.UTC(), []string{model.StatusCompleted, model.StatusPending}).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MySQLStore) ReservationWindows(ctx context.Context, lotID uint64, since time.Time) ([]Window, error) {
	var out []Window
	err := s.orm.WithContext(ctx).
		Model(&model.Reservation{}).
		Select("start_time, end_time").
		Where("lot_id = ? AND end_time > ? AND status IN ?", lotID, since.UTC(),
			[]string{model.StatusCompleted, model.StatusPending}).
		Order("start_time").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mysqlTx owns its connection; finishing the transaction returns the
// connection to the pool.
type mysqlTx struct {
	conn *sql.Conn
	tx   *sql.Tx
}

func (t *mysqlTx) LockLot(ctx context.Context, id uint64) (model.ParkingLot, error) {
	const q = `SELECT id, name, location, capacity, reserved_count, ev_slots
               FROM parking_lots WHERE id = ? FOR UPDATE`
	var l model.ParkingLot
	err := t.tx.QueryRowContext(ctx, q, id).Scan(&l.ID, &l.Name, &l.Location, &l.Capacity, &l.ReservedCount, &l.EVSlots)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ParkingLot{}, ErrLotNotFound
		}
		return model.ParkingLot{}, classify(err)
	}
	return l, nil
}

func (t *mysqlTx) LockReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	const q = `SELECT id, user_id, lot_id, start_time, end_time, price, status, created_at
               FROM reservations WHERE id = ? FOR UPDATE`
	var r model.Reservation
	err := t.tx.QueryRowContext(ctx, q, id).Scan(&r.ID, &r.UserID, &r.LotID, &r.StartTime, &r.EndTime, &r.Price, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, ErrReservationNotFound
		}
		return model.Reservation{}, classify(err)
	}
	return r, nil
}

func (t *mysqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, lot_id, start_time, end_time, price, status, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, r.UserID, r.LotID, r.StartTime.UTC(), r.EndTime.UTC(), r.Price, r.Status, r.CreatedAt.UTC())
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

func (t *mysqlTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, kind, amount, method, status, reference, payment_date)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, p.ReservationID, p.Kind, p.Amount, p.Method, p.Status, p.Reference, p.PaymentDate.UTC())
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (t *mysqlTx) SetReservedCount(ctx context.Context, lotID uint64, n int) error {
	const q = `UPDATE parking_lots SET reserved_count = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, n, lotID)
	return classify(err)
}

func (t *mysqlTx) SetReservationStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, status, id)
	return classify(err)
}

func (t *mysqlTx) Commit() error {
	defer func() { _ = t.conn.Close() }()
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return classify(err)
	}
	return nil
}

func (t *mysqlTx) Rollback() error {
	defer func() { _ = t.conn.Close() }()
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}
