package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

func NewWhen() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

var exactLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// ParseNaturalTime accepts an exact date ("2026-03-10", RFC 3339) or a phrase
// such as "next monday" or "tomorrow". Exact dates without an offset and
// phrases are read in base's location.
func ParseNaturalTime(w *when.Parser, text string, base time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return base, nil
	}
	for _, layout := range exactLayouts {
		if t, err := time.ParseInLocation(layout, text, base.Location()); err == nil {
			return t, nil
		}
	}
	result, err := w.Parse(text, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseNaturalTime: %w", err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("ParseNaturalTime: can't understand %q", text)
	}
	return result.Time, nil
}
