package database

import (
	"strconv"
	"strings"
)

// Rebind rewrites '?' placeholders into the driver's native form. Repositories
// write queries once with '?' and call Rebind before executing them.
// Placeholders inside single-quoted literals are left alone.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)

	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			b.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
