package logger

import "log/slog"

// Error returns a standard attribute for logging errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// EventID returns a standard attribute for provider event IDs.
func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

// SubscriptionID returns a standard attribute for subscription IDs.
func SubscriptionID(id string) slog.Attr {
	return slog.String("subscription_id", id)
}

// ApplicationID returns a standard attribute for application IDs.
func ApplicationID(id string) slog.Attr {
	return slog.String("application_id", id)
}
