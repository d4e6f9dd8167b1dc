// Package metrics exposes session activity to prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chainblock/pkg/logger"
	"chainblock/pkg/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var sessionsRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chainblock_sessions_running",
	Help: "Number of sessions currently running or rate limited",
})

var sessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chainblock_session_events_total",
	Help: "Session lifecycle events by kind",
}, []string{"kind"})

var actionsPerformed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chainblock_actions_total",
	Help: "Platform calls performed by sessions",
}, []string{"verb", "result"})

var sessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chainblock_sessions_finished_total",
	Help: "Sessions that reached an end status",
}, []string{"status"})

var accountsScraped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chainblock_accounts_scraped_total",
	Help: "Accounts counted by finished session runs",
})

// Recorder turns session events into metrics
type Recorder struct{}

var _ session.Sink = Recorder{}

func (Recorder) HandleEvent(e session.Event) {
	sessionEvents.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case session.EventMarkUser:
		result := "success"
		if e.Failed {
			result = "failure"
		}
		actionsPerformed.WithLabelValues(string(e.Verb), result).Inc()
	case session.EventComplete, session.EventStopped, session.EventError, session.EventRecurringWaiting:
		sessionsFinished.WithLabelValues(string(e.Info.Status)).Inc()
		accountsScraped.Add(float64(e.Info.Progress.Scraped))
	}
}

// SetRunning records the number of active sessions
func (Recorder) SetRunning(n int) {
	sessionsRunning.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.LogComponentStart("metrics", map[string]interface{}{"address": addr})
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.LogComponentStop("metrics", "shutdown")
		return nil
	}
	return err
}
