package clickhouse

import (
	"strconv"
	"time"
)

// Option configures Client.
type Option func(*Options)

// Options describes how to reach the arena's ClickHouse database. Settings
// are passed through to the server on every query.
type Options struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	HTTP        bool
	DialTimeout time.Duration
	ReadTimeout time.Duration
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	Settings    map[string]string
}

func defaultOptions() *Options {
	return &Options{
		Port:        9000,
		Database:    "default",
		User:        "default",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 30 * time.Second,
		MaxOpen:     4,
		MaxIdle:     2,
		MaxLifetime: 10 * time.Minute,
		Settings:    map[string]string{},
	}
}

func WithHost(host string) Option {
	return func(o *Options) { o.Host = host }
}

func WithPort(port int) Option {
	return func(o *Options) {
		if port > 0 {
			o.Port = port
		}
	}
}

func WithDatabase(db string) Option {
	return func(o *Options) {
		if db != "" {
			o.Database = db
		}
	}
}

// WithCredentials keeps the default user when user is empty.
func WithCredentials(user, password string) Option {
	return func(o *Options) {
		if user != "" {
			o.User = user
		}
		o.Password = password
	}
}

// WithHTTP selects the HTTP interface (usually port 8123) over the native
// protocol.
func WithHTTP(on bool) Option {
	return func(o *Options) { o.HTTP = on }
}

func WithTimeouts(dial, read time.Duration) Option {
	return func(o *Options) {
		if dial > 0 {
			o.DialTimeout = dial
		}
		if read > 0 {
			o.ReadTimeout = read
		}
	}
}

// WithPool sizes the database/sql pool. Zero keeps the default.
func WithPool(maxOpen, maxIdle int) Option {
	return func(o *Options) {
		if maxOpen > 0 {
			o.MaxOpen = maxOpen
		}
		if maxIdle > 0 {
			o.MaxIdle = maxIdle
		}
	}
}

// WithSetting sets a server setting such as max_threads.
func WithSetting(name, value string) Option {
	return func(o *Options) { o.Settings[name] = value }
}

// WithAsyncInsert lets the server buffer small inserts; wait makes the insert
// return only after the buffer is flushed.
func WithAsyncInsert(enabled, wait bool) Option {
	return func(o *Options) {
		if !enabled {
			delete(o.Settings, "async_insert")
			delete(o.Settings, "wait_for_async_insert")
			return
		}
		o.Settings["async_insert"] = "1"
		if wait {
			o.Settings["wait_for_async_insert"] = "1"
		}
	}
}

// WithMaxExecutionTime caps server-side query time, in whole seconds.
func WithMaxExecutionTime(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Settings["max_execution_time"] = strconv.Itoa(int(d.Seconds()))
		}
	}
}
