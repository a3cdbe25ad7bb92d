package google

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	urlIDPattern  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	bareIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// SpreadsheetID extracts the spreadsheet ID from a full sharing URL, or
// accepts a bare ID unchanged.
func SpreadsheetID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty spreadsheet reference")
	}
	if m := urlIDPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if bareIDPattern.MatchString(ref) {
		return ref, nil
	}
	return "", fmt.Errorf("unrecognized spreadsheet reference %q", ref)
}
