package store

import "fmt"

// dialectKind distinguishes the two deployment profiles' SQL quirks:
// placeholder syntax and row-locking support (spec §4.6 "lite vs
// standard store profile", grounded on the teacher's storage/factory.go
// Lite/Standard split).
type dialectKind int

const (
	dialectPostgres dialectKind = iota
	dialectSQLite
)

type dialect struct {
	kind dialectKind
}

// ph returns the positional placeholder for argument n (1-indexed).
func (d dialect) ph(n int) string {
	if d.kind == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// forUpdate returns the row-lock clause to append to a SELECT, or the
// empty string on sqlite where locking is a no-op (single-writer WAL).
func (d dialect) forUpdate() string {
	if d.kind == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (d dialect) name() string {
	if d.kind == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}
