package export

import (
	"strings"
)

// Filename is the name of the CSV download.
const Filename = "batches.csv"

// EscapeField quotes s only when it holds a comma, a double quote or a line
// feed, doubling any inner quotes.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CSV renders the header and rows joined by CRLF, without a trailing line
// break.
func CSV(rows []Row) []byte {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, joinFields(Header))
	for _, r := range rows {
		lines = append(lines, joinFields(r.Values()))
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func joinFields(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = EscapeField(f)
	}
	return strings.Join(escaped, ",")
}
