package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var sizeRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([KMGT]?B)$`)

// ParseSize parses sizes such as "500MB" or "2.5GB". Units are binary, so
// 1GB is 1024^3 bytes.
func ParseSize(s string) (int64, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	matches := sizeRegex.FindStringSubmatch(normalized)
	if matches == nil {
		return 0, fmt.Errorf("invalid size %q: expected a number followed by B, KB, MB, GB or TB", s)
	}

	unit := matches[2]
	if unit != "B" {
		unit = unit[:1] + "iB"
	}
	bytes, err := humanize.ParseBytes(matches[1] + " " + unit)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(bytes), nil
}

// FormatSize renders a byte count with binary units
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

var yearRegex = regexp.MustCompile(`\((19\d{2}|20\d{2})\)\s*$`)

// SplitTitleYear separates a trailing "(2019)" from a title
// Returns the title unchanged and 0 if no year is found
func SplitTitleYear(title string) (string, int) {
	loc := yearRegex.FindStringSubmatchIndex(title)
	if loc == nil {
		return strings.TrimSpace(title), 0
	}
	year, err := strconv.Atoi(title[loc[2]:loc[3]])
	if err != nil {
		return strings.TrimSpace(title), 0
	}
	return strings.TrimSpace(title[:loc[0]]), year
}

// FormatAgo renders a timestamp relative to now, e.g. "3 weeks ago"
func FormatAgo(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return humanize.Time(*t)
}
