package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewHandler_JSONWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, FormatJSON, slog.LevelInfo)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	logger := slog.New(h).With("component", "test")

	ctx := WithRequestID(context.Background(), "req-1")
	logger.InfoContext(ctx, "handled", "intent", "ask_weather")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if record[RequestIDKey] != "req-1" {
		t.Errorf("request_id = %v, want req-1", record[RequestIDKey])
	}
	if record["component"] != "test" || record["intent"] != "ask_weather" {
		t.Errorf("missing attributes: %v", record)
	}
}

func TestNewHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, FormatText, slog.LevelWarn)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	logger := slog.New(h)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn record missing")
	}
	if strings.Contains(out, RequestIDKey) {
		t.Error("request_id must be absent without a context id")
	}
}

func TestNewHandler_GroupKeepsRequestID(t *testing.T) {
	var buf bytes.Buffer
	h, _ := NewHandler(&buf, FormatText, slog.LevelInfo)
	slog.New(h).WithGroup("cache").InfoContext(WithRequestID(context.Background(), "abc"), "miss", "key", "k")

	if !strings.Contains(buf.String(), "abc") {
		t.Errorf("grouped logger lost request id: %s", buf.String())
	}
}

func TestNewHandler_UnknownFormat(t *testing.T) {
	if _, err := NewHandler(&bytes.Buffer{}, "xml", slog.LevelInfo); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRequestID(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID(empty) = %q, want empty", got)
	}

	id := NewRequestID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("NewRequestID() = %q is not a uuid: %v", id, err)
	}
	if got := RequestID(WithRequestID(context.Background(), id)); got != id {
		t.Errorf("RequestID() = %q, want %q", got, id)
	}
}

func TestRequestID_Unique(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewRequestID()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Errorf("expected 50 unique ids, got %d", len(seen))
	}
}
