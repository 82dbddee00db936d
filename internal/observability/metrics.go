package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across retrievals. Counters are
// observational only and never drive behavior.
type Metrics struct {
	// Retrieval metrics
	RetrievalsTotal    atomic.Int64
	RetrievalsDegraded atomic.Int64
	RetrievalsFailed   atomic.Int64

	// Strategy metrics
	StrategyAttempts  atomic.Int64
	StrategySuccesses atomic.Int64
	StrategyFailures  atomic.Int64

	// Upstream request metrics
	RequestsTotal   atomic.Int64
	RequestsFailed  atomic.Int64
	BytesDownloaded atomic.Int64

	// Record metrics
	RecordsNormalized atomic.Int64
	RecordsDropped    atomic.Int64

	// Output metrics
	DocumentsStored atomic.Int64
	ArchiveErrors   atomic.Int64

	// Chat metrics
	ChatQuestions atomic.Int64
	ChatErrors    atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"driverscout_retrievals_total", "Total retrieval invocations", m.RetrievalsTotal.Load()},
		{"driverscout_retrievals_degraded_total", "Retrievals that fell back to the placeholder record", m.RetrievalsDegraded.Load()},
		{"driverscout_retrievals_failed_total", "Retrievals that failed to persist", m.RetrievalsFailed.Load()},
		{"driverscout_strategy_attempts_total", "Total strategy attempts", m.StrategyAttempts.Load()},
		{"driverscout_strategy_successes_total", "Strategy attempts that yielded records", m.StrategySuccesses.Load()},
		{"driverscout_strategy_failures_total", "Strategy attempts that yielded nothing", m.StrategyFailures.Load()},
		{"driverscout_requests_total", "Total upstream requests", m.RequestsTotal.Load()},
		{"driverscout_requests_failed_total", "Failed upstream requests", m.RequestsFailed.Load()},
		{"driverscout_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"driverscout_records_normalized_total", "Driver records kept after normalization", m.RecordsNormalized.Load()},
		{"driverscout_records_dropped_total", "Driver records dropped by normalization", m.RecordsDropped.Load()},
		{"driverscout_documents_stored_total", "Result documents written to disk", m.DocumentsStored.Load()},
		{"driverscout_archive_errors_total", "Failed archive writes", m.ArchiveErrors.Load()},
		{"driverscout_chat_questions_total", "Questions sent to the language model", m.ChatQuestions.Load()},
		{"driverscout_chat_errors_total", "Questions answered with an error reply", m.ChatErrors.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server and stops it when ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"retrievals_total":    m.RetrievalsTotal.Load(),
		"retrievals_degraded": m.RetrievalsDegraded.Load(),
		"retrievals_failed":   m.RetrievalsFailed.Load(),
		"strategy_attempts":   m.StrategyAttempts.Load(),
		"strategy_successes":  m.StrategySuccesses.Load(),
		"strategy_failures":   m.StrategyFailures.Load(),
		"requests_total":      m.RequestsTotal.Load(),
		"requests_failed":     m.RequestsFailed.Load(),
		"bytes_downloaded":    m.BytesDownloaded.Load(),
		"records_normalized":  m.RecordsNormalized.Load(),
		"records_dropped":     m.RecordsDropped.Load(),
		"documents_stored":    m.DocumentsStored.Load(),
		"archive_errors":      m.ArchiveErrors.Load(),
		"chat_questions":      m.ChatQuestions.Load(),
		"chat_errors":         m.ChatErrors.Load(),
	}
}
