package orchestrator

import (
	"testing"

	"transform-orchestrator/core/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   models.FailureCategory
	}{
		{"empty", "", models.FailureCategoryNone},
		{"monthly limit", "Monthly aggregated Lines of Code limit breached for this account", models.FailureCategoryMonthlyLimit},
		{"job limit", "Lines of Code limit breached: project too large", models.FailureCategoryLinesOfCode},
		{"unknown", "internal error during planning", models.FailureCategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.reason); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.reason, got, tt.want)
			}
		})
	}
}

// The monthly-limit phrasing contains the per-job phrasing as a substring, so
// the monthly match must win.
func TestClassifyMonthlyBeforePerJob(t *testing.T) {
	reason := "Monthly aggregated Lines of Code limit breached"
	if got := Classify(reason); got != models.FailureCategoryMonthlyLimit {
		t.Errorf("expected monthly limit category, got %s", got)
	}
}

func TestMessageFor(t *testing.T) {
	if got := MessageFor(models.FailureCategoryMonthlyLimit); got != MsgMonthlyLimitBreached {
		t.Errorf("unexpected monthly message: %q", got)
	}
	if got := MessageFor(models.FailureCategoryLinesOfCode); got != MsgLinesOfCodeBreached {
		t.Errorf("unexpected lines-of-code message: %q", got)
	}
	if got := MessageFor(models.FailureCategoryGeneric); got != MsgGenericJobFailure {
		t.Errorf("unexpected generic message: %q", got)
	}
	if got := MessageFor(models.FailureCategoryNone); got != "" {
		t.Errorf("expected empty message for no category, got %q", got)
	}
}
