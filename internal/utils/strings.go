package utils

import (
	"strings"
)

const hextable = "0123456789ABCDEF"

// EscapeControl makes ASCII protocol traffic printable in debug logs. Control bytes are replaced with their escape
// sequence (`\r`, `\a`) or `\xNN` when there is no short form.
func EscapeControl(s []byte) string {
	buf := strings.Builder{}
	for _, c := range s {
		switch c {
		case '\a':
			buf.WriteString(`\a`)
		case '\t':
			buf.WriteString(`\t`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			if c < 0x20 || c >= 0x7f {
				buf.WriteString(`\x`)
				buf.WriteByte(hextable[c>>4])
				buf.WriteByte(hextable[c&0x0f])
				continue
			}
			buf.WriteByte(c)
		}
	}
	return buf.String()
}
