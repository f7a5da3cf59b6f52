package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maraichr/reviewlens/internal/ingestion"
)

type stubProducer struct{}

func (stubProducer) Enqueue(ctx context.Context, msg ingestion.JobMessage) (string, error) {
	return "1-0", nil
}

func TestRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(logger, &RouterDeps{Producer: stubProducer{}}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/v1/review-jobs", "application/json", bytes.NewReader([]byte(`{"reviewS3Key":"1.json"}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("review-jobs: expected 202, got %d", resp.StatusCode)
	}
}

func TestRouter_NoProducer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(logger, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/review-jobs", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 without a producer, got %d", resp.StatusCode)
	}
}
