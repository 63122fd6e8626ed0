package logging

import "log/slog"

// Common field names for consistent logging across the pipeline.
const (
	FieldJob     = "job"
	FieldFeed    = "feed"
	FieldEventID = "event_id"
	FieldCount   = "count"
	FieldError   = "error"
	FieldBackoff = "backoff"
	FieldClients = "clients"
)

// Job returns a slog attribute for the scheduler job name.
func Job(name string) slog.Attr {
	return slog.String(FieldJob, name)
}

// Feed returns a slog attribute for the originating feed.
func Feed(name string) slog.Attr {
	return slog.String(FieldFeed, name)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Count returns a slog attribute for a record count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
