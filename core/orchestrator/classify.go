package orchestrator

import (
	"strings"

	"transform-orchestrator/core/models"
)

// User-facing failure messages per classified category
const (
	MsgMonthlyLimitBreached = "The transformation could not run: your monthly aggregated Lines of Code limit has been breached. The limit resets at the start of the next month."
	MsgLinesOfCodeBreached  = "The transformation could not run: this project exceeds the Lines of Code limit for a single transformation job."
	MsgGenericJobFailure    = "The transformation job encountered an issue and could not complete."
)

// reason substrings recognized by the classifier
const (
	reasonMonthlyLimit = "Monthly aggregated Lines of Code limit breached"
	reasonLOCLimit     = "Lines of Code limit breached"
)

// Classify maps a free-text backend failure reason onto a failure category.
// Matching is by substring against known phrasings, so the result is lossy
// and best-effort; callers must treat it as a display hint, never as an
// authoritative error code.
func Classify(reason string) models.FailureCategory {
	switch {
	case reason == "":
		return models.FailureCategoryNone
	case strings.Contains(reason, reasonMonthlyLimit):
		return models.FailureCategoryMonthlyLimit
	case strings.Contains(reason, reasonLOCLimit):
		return models.FailureCategoryLinesOfCode
	default:
		return models.FailureCategoryGeneric
	}
}

// MessageFor returns the user-facing message for a failure category
func MessageFor(category models.FailureCategory) string {
	switch category {
	case models.FailureCategoryMonthlyLimit:
		return MsgMonthlyLimitBreached
	case models.FailureCategoryLinesOfCode:
		return MsgLinesOfCodeBreached
	case models.FailureCategoryNone:
		return ""
	default:
		return MsgGenericJobFailure
	}
}
