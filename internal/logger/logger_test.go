package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pgregory.net/rapid"
)

func TestRedactsSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(Config{Level: "debug", Format: "json", Service: "users"}, &buf)

	log.Info("login", "email", "ana@x.com", "refresh_token", "abc.def.ghi", "newPassword", "abc12")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if rec["refresh_token"] != "[REDACTED]" {
		t.Errorf("refresh_token not redacted: %v", rec["refresh_token"])
	}
	if rec["newPassword"] != "[REDACTED]" {
		t.Errorf("newPassword not redacted: %v", rec["newPassword"])
	}
	if rec["email"] != "ana@x.com" {
		t.Errorf("email should be kept, got %v", rec["email"])
	}
	if rec["service"] != "users" {
		t.Errorf("expected service attribute, got %v", rec["service"])
	}
}

// Feature: logging, Property 1: Correlation ID Round Trip
func TestProperty1_CorrelationIDRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[a-zA-Z0-9/-]{1,40}`).Draw(t, "id")
		ctx := SetCorrelationID(context.Background(), id)
		if got := GetCorrelationID(ctx); got != id {
			t.Fatalf("expected %q, got %q", id, got)
		}
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "bogus": "INFO"}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
