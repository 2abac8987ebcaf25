package optix

import (
	"errors"
	"testing"
)

func TestErrorUnwrapDispatchesToSentinel(t *testing.T) {
	err := newErr(ErrInvalidParameter, "mirror1", "curvature", "out of range")
	if !errors.Is(err, ErrInvalidParameter) {
		t.Error("errors.Is(err, ErrInvalidParameter) = false, want true")
	}
	if errors.Is(err, ErrRayLost) {
		t.Error("errors.Is(err, ErrRayLost) = true, want false")
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := newErr(ErrInvalidHandle, "film1", "", "unknown element")
	msg := err.Error()
	if !containsAll(msg, "invalid element handle", "film1", "unknown element") {
		t.Errorf("Error() = %q, missing expected context", msg)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
