package types

import (
	"strings"
	"time"
)

// FileTimestampLayout is the timestamp layout used in output file names.
const FileTimestampLayout = "20060102_150405"

// SafeTag makes a service tag safe for use in a file name. Characters
// outside [A-Za-z0-9_-] become underscores.
func SafeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	var b strings.Builder
	b.Grow(len(tag))
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// FileStem returns "<safe-tag>_<YYYYmmdd_HHMMSS>" for t in UTC.
func FileStem(tag string, t time.Time) string {
	return SafeTag(tag) + "_" + t.UTC().Format(FileTimestampLayout)
}
