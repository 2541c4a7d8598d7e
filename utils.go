package acceptor

import (
	"fmt"
	"strings"
	"time"

	"github.com/pbtc-infra/pbtc-acceptor/types"
)

// getResultString returns a short string representing a component outcome
func getResultString(status types.Status) string {
	switch status {
	case types.StatusPass:
		return "✓ pass"
	case types.StatusSkip:
		return "- skip"
	case types.StatusError:
		return "! error"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// summarizeError reduces an error to a single table-friendly line
func summarizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	if idx := strings.Index(errStr, "\n"); idx != -1 {
		errStr = errStr[:idx]
	}
	if len(errStr) > 80 {
		errStr = errStr[:70] + "..."
	}
	return errStr
}
