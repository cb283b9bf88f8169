package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// captureWriter sbírá log výstup pro aserce. Thread-safe, protože
// summarizer loguje z vlastní goroutiny.
type captureWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *captureWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func captureLogger() (*slog.Logger, *captureWriter) {
	w := &captureWriter{}
	return slog.New(slog.NewJSONHandler(w, nil)), w
}

func TestReportOnceEmitsSummaryAndLatest(t *testing.T) {
	store := &fakeStore{}
	ingestor := NewIngestor(store, testLogger())
	ctx := context.Background()
	ingestor.HandleMessage(ctx, "sensors/deskA/temperature", []byte(`{"value":21.5,"unit":"C","timestamp":"2024-01-01T00:00:00"}`))
	ingestor.HandleMessage(ctx, "sensors/deskA/temperature", []byte(`{"value":23.0,"unit":"C","timestamp":"2024-01-01T00:05:00"}`))

	logger, out := captureLogger()
	s := NewSummarizer(store, logger, time.Minute)
	s.reportOnce(ctx)

	got := out.String()
	if !strings.Contains(got, "Statistika senzoru") {
		t.Errorf("output missing summary line: %s", got)
	}
	if !strings.Contains(got, "Poslední měření") {
		t.Errorf("output missing latest line: %s", got)
	}
	if !strings.Contains(got, `"sensor":"deskA"`) {
		t.Errorf("output missing sensor name: %s", got)
	}
	if !strings.Contains(got, `"samples":2`) {
		t.Errorf("output missing sample count: %s", got)
	}
}

func TestReportOnceEmptyStoreEmitsNothing(t *testing.T) {
	logger, out := captureLogger()
	s := NewSummarizer(&fakeStore{}, logger, time.Minute)

	s.reportOnce(context.Background())

	if got := out.String(); got != "" {
		t.Errorf("expected no output for empty store, got: %s", got)
	}
}

func TestReportOnceQueryErrorIsolated(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("db down")}
	logger, out := captureLogger()
	s := NewSummarizer(store, logger, time.Minute)

	// Selhání dotazu = warning, žádné statistiky, žádný pád.
	s.reportOnce(context.Background())
	if got := out.String(); !strings.Contains(got, "WARN") {
		t.Errorf("expected warning on query error, got: %s", got)
	}

	// Další cyklus po zotavení DB musí normálně proběhnout.
	store.mu.Lock()
	store.queryErr = nil
	store.mu.Unlock()

	ingestor := NewIngestor(store, testLogger())
	ingestor.HandleMessage(context.Background(), "sensors/deskA/temperature", []byte(`{"value":1}`))

	s.reportOnce(context.Background())
	if got := out.String(); !strings.Contains(got, "Statistika senzoru") {
		t.Errorf("expected summary after recovery, got: %s", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewSummarizer(&fakeStore{}, testLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
