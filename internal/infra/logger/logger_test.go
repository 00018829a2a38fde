package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_Levels(t *testing.T) {
	l, err := New(Config{Development: true, Level: "warn", Encoding: "console", Service: "powerqr"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if l.Core().Enabled(-1) {
		t.Fatal("expected debug to be disabled at warn level")
	}
	if !l.Core().Enabled(1) {
		t.Fatal("expected warn to be enabled")
	}
}

func TestInit_ReplacesGlobal(t *testing.T) {
	l := MustInit(Config{Level: "error"})
	if L() != l {
		t.Fatal("expected L to return the initialised logger")
	}
	if Component("scan-consumer") == nil {
		t.Fatal("expected a named logger")
	}
}

func TestNew_JSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Service: "powerqr", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	l.Named("scan-consumer").Info("stored", zap.Int("qr_code_id", 3))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON entry, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "powerqr" || entry["logger"] != "scan-consumer" || entry["msg"] != "stored" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNew_UnknownEncoding(t *testing.T) {
	if _, err := New(Config{Encoding: "xml"}); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}
