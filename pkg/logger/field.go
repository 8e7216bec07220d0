package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// Field is a typed key/value attached to a log entry.
type Field struct {
	event   func(*zerolog.Event)
	context func(zerolog.Context) zerolog.Context
}

func String(key, v string) Field {
	return Field{
		event:   func(e *zerolog.Event) { e.Str(key, v) },
		context: func(c zerolog.Context) zerolog.Context { return c.Str(key, v) },
	}
}

func Strings(key string, v []string) Field {
	return Field{
		event:   func(e *zerolog.Event) { e.Strs(key, v) },
		context: func(c zerolog.Context) zerolog.Context { return c.Strs(key, v) },
	}
}

func Int(key string, v int) Field {
	return Field{
		event:   func(e *zerolog.Event) { e.Int(key, v) },
		context: func(c zerolog.Context) zerolog.Context { return c.Int(key, v) },
	}
}

func Int64(key string, v int64) Field {
	return Field{
		event:   func(e *zerolog.Event) { e.Int64(key, v) },
		context: func(c zerolog.Context) zerolog.Context { return c.Int64(key, v) },
	}
}

func Float64(key string, v float64) Field {
	return Field{
		event:   func(e *zerolog.Event) { e.Float64(key, v) },
		context: func(c zerolog.Context) zerolog.Context { return c.Float64(key, v) },
	}
}

func Bool(key string, v bool) Field {
	return Field{
		event:   func(e *zerolog.Event) { e.Bool(key, v) },
		context: func(c zerolog.Context) zerolog.Context { return c.Bool(key, v) },
	}
}

// Duration is rendered in milliseconds.
func Duration(key string, v time.Duration) Field {
	return Field{
		event:   func(e *zerolog.Event) { e.Dur(key, v) },
		context: func(c zerolog.Context) zerolog.Context { return c.Dur(key, v) },
	}
}

// Error adds err under "error". A nil error adds nothing.
func Error(err error) Field {
	return Field{
		event: func(e *zerolog.Event) {
			if err != nil {
				e.Err(err)
			}
		},
		context: func(c zerolog.Context) zerolog.Context {
			if err != nil {
				return c.Err(err)
			}
			return c
		},
	}
}

func Any(key string, v interface{}) Field {
	return Field{
		event:   func(e *zerolog.Event) { e.Interface(key, v) },
		context: func(c zerolog.Context) zerolog.Context { return c.Interface(key, v) },
	}
}
