package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared across packages.
const (
	KeyDomain   = "domain"
	KeyDay      = "day"
	KeySignal   = "signal"
	KeySeconds  = "seconds"
	KeyURL      = "url"
	KeyAlarm    = "alarm"
	KeyPath     = "path"
	KeyDuration = "duration"
	KeyError    = "error"
	KeyOp       = "op"
)

func Domain(d string) slog.Attr          { return slog.String(KeyDomain, d) }
func Day(key string) slog.Attr           { return slog.String(KeyDay, key) }
func Signal(kind string) slog.Attr       { return slog.String(KeySignal, kind) }
func Seconds(s float64) slog.Attr        { return slog.Float64(KeySeconds, s) }
func URL(u string) slog.Attr             { return slog.String(KeyURL, u) }
func Alarm(name string) slog.Attr        { return slog.String(KeyAlarm, name) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Duration(d time.Duration) slog.Attr { return slog.Duration(KeyDuration, d) }
func Op(op string) slog.Attr             { return slog.String(KeyOp, op) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
