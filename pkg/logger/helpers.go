package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRateLimit logs a rate limit pause for an endpoint
func LogRateLimit(sessionID, endpoint string, reset time.Time, pause time.Duration) {
	fields := map[string]interface{}{
		"session_id": sessionID,
		"endpoint":   endpoint,
		"pause":      pause,
		"action":     "rate_limited",
	}
	if !reset.IsZero() {
		fields["reset"] = reset
	}
	GetLogger().WarnWithFields("Rate limit reached, pausing session", fields)
}

// LogMarkUser logs the outcome of one effectful call
func LogMarkUser(sessionID, userID, verb string, err error) {
	l := GetLogger().WithFields(map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
		"verb":       verb,
	})
	if err != nil {
		l.WithError(err).Warn("Action failed")
		return
	}
	l.Debug("Action applied")
}

// LogSessionProgress logs scraping progress for a session
func LogSessionProgress(sessionID string, scraped int, total *int) {
	fields := map[string]interface{}{
		"session_id": sessionID,
		"scraped":    scraped,
	}
	if total != nil && *total > 0 {
		fields["total"] = *total
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(scraped)/float64(*total)*100)
	}
	GetLogger().DebugWithFields("Session progress", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
