package core

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"tidewatch/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Service:     "tidewatch",
		LogLevel:    "info",
	}
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewServer() returned error: %v", err)
	}
	if srv.Router() == nil {
		t.Error("Router() returned nil")
	}
	if srv.Validator == nil {
		t.Error("Validator not initialized")
	}
}

func TestNewServerNilArgs(t *testing.T) {
	if _, err := NewServer(nil, testLogger()); err == nil {
		t.Error("NewServer(nil config) did not return error")
	}
	if _, err := NewServer(testConfig(), nil); err == nil {
		t.Error("NewServer(nil logger) did not return error")
	}
}

func TestShutdownRunsClosers(t *testing.T) {
	srv, err := NewServer(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewServer() returned error: %v", err)
	}

	var order []string
	srv.Closers = append(srv.Closers,
		func(context.Context) error {
			order = append(order, "pool")
			return nil
		},
		func(context.Context) error {
			order = append(order, "consumer")
			return nil
		},
	)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() returned error: %v", err)
	}
	if len(order) != 2 || order[0] != "pool" || order[1] != "consumer" {
		t.Errorf("closers ran in order %v, want [pool consumer]", order)
	}
}

func TestShutdownReturnsFirstErrorButRunsAll(t *testing.T) {
	srv, err := NewServer(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewServer() returned error: %v", err)
	}

	firstErr := errors.New("pool close failed")
	ranSecond := false
	srv.Closers = append(srv.Closers,
		func(context.Context) error { return firstErr },
		func(context.Context) error {
			ranSecond = true
			return nil
		},
	)

	err = srv.Shutdown(context.Background())
	if err == nil {
		t.Fatal("Shutdown() returned nil, want wrapped closer error")
	}
	if !errors.Is(err, firstErr) {
		t.Errorf("Shutdown() error = %v, want to wrap %v", err, firstErr)
	}
	if !ranSecond {
		t.Error("second closer did not run after first failed")
	}
}
