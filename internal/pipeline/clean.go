package pipeline

import (
	"fmt"
	"regexp"

	"sheetclean/internal/config"
)

const DefaultCategoryPattern = config.DefaultCategoryPattern

// CharClassCleaner deletes every match of pattern.
func CharClassCleaner(pattern string) (func(string) string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile cleaner pattern %q: %w", pattern, err)
	}
	return func(s string) string {
		return re.ReplaceAllString(s, "")
	}, nil
}
