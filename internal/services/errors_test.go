package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelgate/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrStorage, "s3", "put object", "upload failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"s3", "put object", "upload failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToStorageMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "engine", "start", "topic empty", nil), "validation"},
		{services.Wrap(services.ErrNotFound, "engine", "lookup", "", nil), "not_found"},
		{services.Wrap(services.ErrOutOfOrder, "engine", "approve", "", nil), "out_of_order"},
		{services.Wrap(services.ErrInvalidTransition, "engine", "reject", "", nil), "invalid_transition"},
		{services.Wrap(services.ErrAgentFailure, "agent", "execute", "", services.ErrTimeout), "timeout"},
		{services.Wrap(services.ErrStorage, "sqlite", "save", "", nil), "storage"},
		{errors.New("plain"), "internal"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
