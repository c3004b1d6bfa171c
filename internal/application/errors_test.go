package application

import (
	"errors"
	"testing"

	"github.com/example/counseling-intake/internal/calendar"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	t.Run("message is stable regardless of contents", func(t *testing.T) {
		t.Parallel()
		var nilErr *ValidationError
		if got := nilErr.Error(); got != "" {
			t.Fatalf("nil receiver Error() = %q, want empty", got)
		}
		populated := &ValidationError{FieldErrors: map[string]string{"meet_date": "INVALID_DATE"}}
		if got := populated.Error(); got != "validation failed" {
			t.Fatalf("Error() = %q, want validation failed", got)
		}
	})

	t.Run("HasErrors tracks recorded fields", func(t *testing.T) {
		t.Parallel()
		v := &ValidationError{}
		if v.HasErrors() {
			t.Fatal("empty error reported HasErrors")
		}
		v.add("topic", "REQUIRED")
		if !v.HasErrors() {
			t.Fatal("populated error did not report HasErrors")
		}
	})

	t.Run("merge copies fields and tolerates nil", func(t *testing.T) {
		t.Parallel()
		v := &ValidationError{}
		v.add("topic", "REQUIRED")
		v.merge(&ValidationError{FieldErrors: map[string]string{"meet_time": "MISALIGNED_TIME"}})
		v.merge(nil)

		if len(v.FieldErrors) != 2 {
			t.Fatalf("FieldErrors has %d entries, want 2", len(v.FieldErrors))
		}
		if got := v.FieldErrors["meet_time"]; got != "MISALIGNED_TIME" {
			t.Fatalf("merged field = %q, want MISALIGNED_TIME", got)
		}
	})
}

func TestPolicyError(t *testing.T) {
	t.Parallel()

	err := error(&PolicyError{Reason: calendar.ReasonOutsideHours})

	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatal("errors.As failed to unwrap PolicyError")
	}
	if policyErr.Reason != calendar.ReasonOutsideHours {
		t.Fatalf("Reason = %q, want %q", policyErr.Reason, calendar.ReasonOutsideHours)
	}
	if err.Error() != "application: policy rejected slot: OUTSIDE_HOURS" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
