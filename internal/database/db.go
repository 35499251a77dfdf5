package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Options configures the MySQL pool.
type Options struct {
	User, Pass, Host, Port, Name string
	MaxConns                     int // open and idle connection cap
	LockWaitSeconds              int // innodb_lock_wait_timeout for every session
}

// DSN builds the driver connection string. parseTime maps DATETIME to
// time.Time and loc=UTC keeps every stored time in UTC.
func DSN(o Options) string {
	auth := o.User
	if o.Pass != "" {
		auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
	}
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, o.Host, o.Port, o.Name)
	if o.LockWaitSeconds > 0 {
		// system variables in the DSN are applied with SET on each new connection
		dsn += fmt.Sprintf("&innodb_lock_wait_timeout=%d", o.LockWaitSeconds)
	}
	return dsn
}

// Open connects to MySQL and verifies the connection.
func Open(o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(o))
	if err != nil {
		return nil, err
	}

	conns := o.MaxConns
	if conns <= 0 {
		conns = 20
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
