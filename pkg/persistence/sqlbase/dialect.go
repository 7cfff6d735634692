package sqlbase

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect covers the differences between the supported SQL databases.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Rebind rewrites "?" placeholders into the dialect's placeholder syntax.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var (
		b strings.Builder
		n int
	)

	b.Grow(len(query) + 8)

	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)

			continue
		}

		n++

		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}

	return b.String()
}

// timeLayout has a fixed width so stored text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (d Dialect) timeArg(t time.Time) any {
	if d == SQLite {
		return t.UTC().Format(timeLayout)
	}

	return t.UTC()
}

func (d Dialect) nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}

	return d.timeArg(*t)
}

// nullTime scans timestamps stored natively or as text.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false

		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true

		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into a timestamp", src)
	}
}

func (n *nullTime) parse(value string) error {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", value, err)
	}

	n.Time, n.Valid = t.UTC(), true

	return nil
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}

	t := n.Time

	return &t
}
