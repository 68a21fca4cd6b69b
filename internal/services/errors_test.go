package services_test

import (
	"errors"
	"strings"
	"testing"

	"shelf/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "transfer", "rename", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transfer", "rename", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "scanner", "enumerate", "folder unavailable", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsSecurity(t *testing.T) {
	err := services.Wrap(services.ErrSecurity, "bookmarks", "resolve", "token path mismatch", nil)
	if !services.IsSecurity(err) {
		t.Fatalf("expected security classification for %v", err)
	}
	if services.IsSecurity(errors.New("plain")) {
		t.Fatal("plain error must not classify as security")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"security", services.Wrap(services.ErrSecurity, "a", "b", "c", nil), false},
		{"validation", services.Wrap(services.ErrValidation, "a", "b", "c", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "a", "b", "c", nil), false},
		{"transient", services.Wrap(services.ErrTransient, "a", "b", "c", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "a", "b", "c", nil), true},
		{"plain", errors.New("disk full"), true},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("%s: Retryable=%v, want %v", tc.name, got, tc.want)
		}
	}
}
