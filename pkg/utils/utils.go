package utils

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ============================================================================
// Pure Utility Functions
// ============================================================================
//
// This file contains only domain-agnostic utility functions that can be
// used across any part of the application.
// ============================================================================

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeName converts a display name into a filesystem-safe token.
// Characters outside [A-Za-z0-9._-] are replaced with underscores, and
// leading/trailing dots are trimmed so the result never looks hidden.
func SanitizeName(name string) string {
	safe := unsafeNameChars.ReplaceAllString(name, "_")
	safe = strings.Trim(safe, ".")
	if safe == "" {
		safe = "Unknown"
	}
	return safe
}

// UniqueName returns name, or name with a numeric suffix (_2, _3, ...) if
// name is already present in taken. The returned name is not recorded in
// taken; the caller owns that bookkeeping.
func UniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// JoinNames sorts names lexicographically and joins them with underscores.
// Used to build the directory token for photos containing several subjects.
func JoinNames(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return strings.Join(sorted, "_")
}

// DeduplicateStrings removes duplicate values from a slice, preserving the
// order of first occurrence.
func DeduplicateStrings(values []string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

// FormatBytes renders a byte count in a human-readable unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TruncateString shortens s to max runes, appending an ellipsis marker when
// truncation occurred. Used when logging long model responses.
func TruncateString(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
