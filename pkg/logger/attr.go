package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Error records a single error under the key "error". Nil yields an empty
// attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups non-nil errors under the key "errors".
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Component records the subsystem emitting the log line.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records a short event name.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// RequestID records the request identifier.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// AccountID records the acting account identifier.
func AccountID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("account_id", id)
}

// UserID records the acting user identifier.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// ThreadID records a conversation thread identifier.
func ThreadID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("thread_id", id)
}

// SandboxID records a sandbox identifier.
func SandboxID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("sandbox_id", id)
}

// PlanID records a billing plan (price) identifier.
func PlanID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("plan_id", id)
}

// Duration records an elapsed duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
