package database

import (
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/connect"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	mysqlDriver "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// ConnectOptions defines how the favorites database is opened and how
// connection attempts are retried.
type ConnectOptions struct {
	Driver string // "mysql" | "sqlite"

	// MySQL
	Host     string
	Port     string
	User     string
	Password string
	Database string
	TLS      bool

	// SQLite
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Retry connect.Options
}

// DSN renders the driver-specific data source name.
func (o ConnectOptions) DSN() (string, error) {
	switch o.Driver {
	case DriverMySQL:
		cfg := mysqlDriver.NewConfig()
		cfg.User = o.User
		cfg.Passwd = o.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(o.Host, o.Port)
		cfg.DBName = o.Database
		cfg.ParseTime = true
		// report matched rows so an unchanged UPDATE is not mistaken for a missing id
		cfg.ClientFoundRows = true
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		if o.TLS {
			cfg.TLSConfig = "true"
		}
		return cfg.FormatDSN(), nil
	case DriverSQLite:
		if o.Path == "" {
			return "", fmt.Errorf("sqlite path is empty")
		}
		// foreign keys on, wait on a locked database instead of failing
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", o.Path), nil
	default:
		return "", fmt.Errorf("unsupported driver %q", o.Driver)
	}
}

// Open creates the pool and pings it with exponential backoff until
// Retry.ConnectTimeout is reached.
func Open(opts ConnectOptions, log logger.Logger) (*sql.DB, error) {
	if err := opts.Retry.Validate(); err != nil {
		return nil, err
	}
	dsn, err := opts.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}

	maxOpen := opts.MaxOpenConns
	if opts.Driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under the rating fan-out
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(min(opts.MaxIdleConns, max(maxOpen, 1)))
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := connect.WithRetry("database", opts.target(), opts.Retry, db.PingContext, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// target names the database in logs without credentials.
func (o ConnectOptions) target() string {
	if o.Driver == DriverSQLite {
		return o.Path
	}
	return net.JoinHostPort(o.Host, o.Port) + "/" + o.Database
}
