// Package logger provides the structured logger used across chainblock.
//
// It wraps zerolog behind a small interface so that sessions, scrapers and
// the platform client can attach fields (session_id, executor, target)
// without depending on zerolog directly:
//
//	log := logger.GetLogger().WithField("session_id", id)
//	log.InfoWithFields("Session completed", map[string]interface{}{
//	    "scraped": 120,
//	    "blocked": 87,
//	})
//
// Tests should use NewNopLogger.
package logger
