package device

import "strings"

// error markers DNOS emits on a rejected command. "% " covers the classic
// syntax-error form ("% Invalid input detected...").
var errorMarkers = []string{
	"access-denied",
	"invalid-value",
	"commit failed",
	"rpc error",
	"bad-element",
	"operation-failed",
}

// DetectError scans a captured output block for device-side error
// indications. Returns the offending line and true when one is found.
func DetectError(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "ERROR:") || strings.HasPrefix(trimmed, "% ") {
			return trimmed, true
		}
		lower := strings.ToLower(trimmed)
		for _, marker := range errorMarkers {
			if strings.Contains(lower, marker) {
				return trimmed, true
			}
		}
	}
	return "", false
}

// noChangeMarker is the commit-check output that signals drift: the
// candidate configuration is already the running configuration.
const noChangeMarker = "no configuration changes were made"

// IsNoChange reports whether commit-check output carries the no-change
// indicator.
func IsNoChange(output string) bool {
	return strings.Contains(strings.ToLower(output), noChangeMarker)
}
