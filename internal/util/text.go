package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reFileName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

func NormalizeColumnName(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	return reSpaces.ReplaceAllString(s, " ")
}

func StringPtr(v string) *string {
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// SanitizeFileName maps an arbitrary label onto a safe file name stem.
func SanitizeFileName(input string) string {
	out := reFileName.ReplaceAllString(strings.TrimSpace(input), "_")
	out = strings.Trim(out, "_")
	if len(out) > 120 {
		out = out[:120]
	}
	if out == "" {
		out = "sheet"
	}
	return out
}
