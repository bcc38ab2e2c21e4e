package errors

import (
	"fmt"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection lost", ErrConnectionLost, true},
		{"fetch failed", ErrFetchFailed, true},
		{"fetch status", ErrFetchStatus, true},
		{"invalid config", ErrInvalidConfig, false},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"unknown queue", ErrUnknownQueue, true},
		{"parsing failed", ErrParsingFailed, true},
		{"connection lost", ErrConnectionLost, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestWrapHelpers(t *testing.T) {
	base := fmt.Errorf("boom")

	wrapped := WrapInvalid(base, "Config", "Load", "pattern validation")
	if !IsInvalid(wrapped) {
		t.Error("WrapInvalid should produce an invalid-class error")
	}
	if !Is(wrapped, base) {
		t.Error("wrapped error should match the base via errors.Is")
	}

	transient := WrapTransient(base, "Registry", "RefreshAll", "fetch")
	if !IsTransient(transient) {
		t.Error("WrapTransient should produce a transient-class error")
	}

	fatal := WrapFatal(base, "Feed", "Run", "listen")
	if !IsFatal(fatal) {
		t.Error("WrapFatal should produce a fatal-class error")
	}

	if WrapInvalid(nil, "c", "m", "a") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWrapFormat(t *testing.T) {
	err := Wrap(fmt.Errorf("boom"), "Storage", "Append", "eviction")
	expected := "Storage.Append: eviction failed: boom"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}
