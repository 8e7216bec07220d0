package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Client wraps a database/sql pool on the clickhouse driver.
type Client struct {
	db       *sql.DB
	database string
}

// NewClient opens and pings a ClickHouse connection pool.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Host == "" {
		return nil, fmt.Errorf("clickhouse: host is required")
	}

	db, err := sql.Open("clickhouse", DSN(o))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(o.MaxOpen)
	db.SetMaxIdleConns(o.MaxIdle)
	db.SetConnMaxLifetime(o.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, o.DialTimeout+time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s:%d: %w", o.Host, o.Port, err)
	}

	return &Client{db: db, database: o.Database}, nil
}

// Database is the database every statement runs against.
func (c *Client) Database() string { return c.database }

// NewClientFromDB wraps an already open pool, such as one shared with other
// components.
func NewClientFromDB(db *sql.DB, database string) *Client {
	return &Client{db: db, database: database}
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Batch sends rows for one INSERT statement as a single block. The driver
// buffers prepared-statement executions inside a transaction and flushes them
// on commit.
func (c *Client) Batch(ctx context.Context, insert string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append batch row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// DSN renders o as a clickhouse-go connection string. Settings become query
// parameters, which the driver forwards to the server.
func DSN(o *Options) string {
	scheme := "clickhouse"
	if o.HTTP {
		scheme = "http"
	}
	q := url.Values{}
	for k, v := range o.Settings {
		q.Set(k, v)
	}
	if o.DialTimeout > 0 {
		q.Set("dial_timeout", o.DialTimeout.String())
	}
	if o.ReadTimeout > 0 {
		q.Set("read_timeout", o.ReadTimeout.String())
	}
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(o.User, o.Password),
		Host:     net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Path:     "/" + o.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}
