package utils

import (
	"github.com/mattn/go-runewidth"
)

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// TruncateWidth shortens str to at most maxWidth terminal columns, ending with "...".
// Wide runes (CJK, emoji) count as two columns.
func (s *StringHelper) TruncateWidth(str string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}

	if runewidth.StringWidth(str) <= maxWidth {
		return str
	}

	return runewidth.Truncate(str, maxWidth, "...")
}

// PadRight pads str with spaces to width terminal columns.
func (s *StringHelper) PadRight(str string, width int) string {
	return runewidth.FillRight(str, width)
}
