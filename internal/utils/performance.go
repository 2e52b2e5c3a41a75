package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Timer measures an operation and logs its duration, escalating to a warning
// once the operation exceeds its slow threshold
type Timer struct {
	start         time.Time
	name          string
	slowThreshold time.Duration
	log           zerolog.Logger
}

// NewTimer creates a new timer with the given name and slow threshold
func NewTimer(name string, slowThreshold time.Duration, log zerolog.Logger) *Timer {
	return &Timer{
		start:         time.Now(),
		name:          name,
		slowThreshold: slowThreshold,
		log:           log,
	}
}

// Stop stops the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	return t.StopWithContext(nil)
}

// StopWithContext stops the timer and logs with additional fields
func (t *Timer) StopWithContext(fields map[string]interface{}) time.Duration {
	duration := time.Since(t.start)

	event := t.log.Debug()
	msg := "Operation completed"
	if t.slowThreshold > 0 && duration > t.slowThreshold {
		event = t.log.Warn()
		msg = "Slow operation detected"
	}

	event = event.
		Str("operation", t.name).
		Dur("duration_ms", duration)

	for key, value := range fields {
		switch v := value.(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		default:
			event = event.Interface(key, v)
		}
	}

	event.Msg(msg)

	return duration
}

// MeasureDBQuery measures database query performance
//
// Usage:
//
//	done := utils.MeasureDBQuery("monthly_roi", time.Second, log)
//	defer func() { done(len(rows)) }()
func MeasureDBQuery(queryName string, slowThreshold time.Duration, log zerolog.Logger) func(rows int) {
	start := time.Now()

	return func(rows int) {
		duration := time.Since(start)

		if slowThreshold > 0 && duration > slowThreshold {
			log.Warn().
				Str("query", queryName).
				Dur("duration", duration).
				Int("rows", rows).
				Msg("Slow database query detected")
			return
		}

		log.Debug().
			Str("query", queryName).
			Dur("duration_ms", duration).
			Int("rows", rows).
			Msg("Database query completed")
	}
}
