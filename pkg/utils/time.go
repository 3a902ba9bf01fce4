package utils

import "time"

// SortableTimeLayout is a fixed-width UTC layout; values in it compare
// correctly as plain strings, which storage condition expressions rely on.
const SortableTimeLayout = "2006-01-02T15:04:05Z"

// FilenameStampLayout is used in generated export file names.
const FilenameStampLayout = "20060102_150405"

// FormatSortable renders t in SortableTimeLayout.
func FormatSortable(t time.Time) string {
	return t.UTC().Format(SortableTimeLayout)
}

// ParseSortable parses a value produced by FormatSortable.
func ParseSortable(s string) (time.Time, error) {
	return time.Parse(SortableTimeLayout, s)
}
