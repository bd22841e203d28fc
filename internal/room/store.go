// internal/room/store.go
//
// Shared room state contract.
//
// A room is one flat document of string fields that both players read, write
// and watch. The store is the only channel between the two players: writes
// become visible to subscribers asynchronously, concurrent writers are
// last-write-wins per field, and the two atomic primitives (Incr and
// UpdateIf) are the only tools for avoiding lost updates.

package room

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned for operations on a room that does not exist.
	ErrNotFound = errors.New("room not found")
	// ErrExists is returned by Create when the room id is taken.
	ErrExists = errors.New("room already exists")
)

// Store persists room documents and fans out change notifications.
// Implementations may be backed by memory (this package) or Redis.
type Store interface {
	// Create writes a new document. Returns ErrExists if id is taken.
	Create(ctx context.Context, id string, ch Changes) error

	// Get returns a snapshot of the document or ErrNotFound.
	Get(ctx context.Context, id string) (Doc, error)

	// Update applies ch as blind per-field writes in one atomic step.
	Update(ctx context.Context, id string, ch Changes) error

	// UpdateIf applies ch only if every condition holds, atomically with the
	// check. applied reports whether the write happened.
	UpdateIf(ctx context.Context, id string, conds []Cond, ch Changes) (applied bool, err error)

	// Subscribe delivers the current snapshot and then one snapshot per
	// committed write. Delivery coalesces: a slow reader sees the latest
	// document, not a backlog. The channel closes when ctx is done.
	Subscribe(ctx context.Context, id string) (<-chan Doc, error)
}

// listSep joins list entries inside one field.
const listSep = "|"

type opKind int

const (
	opSet opKind = iota
	opDelete
	opIncr
	opAppend
)

// Change is one field mutation.
type Change struct {
	kind   opKind
	value  string
	delta  int64
	values []string
}

// Changes maps field names to their mutation.
type Changes map[string]Change

// Set overwrites the field.
func Set(v string) Change { return Change{kind: opSet, value: v} }

// SetInt overwrites the field with a base-10 integer.
func SetInt(n int64) Change { return Set(formatInt(n)) }

// SetBool overwrites the field with "true" or "false".
func SetBool(b bool) Change {
	if b {
		return Set("true")
	}
	return Set("false")
}

// Delete removes the field.
func Delete() Change { return Change{kind: opDelete} }

// Incr atomically adds delta to an integer field (missing reads as 0).
func Incr(delta int64) Change { return Change{kind: opIncr, delta: delta} }

// Append atomically appends entries to a list field.
func Append(values ...string) Change { return Change{kind: opAppend, values: values} }

type condKind int

const (
	condEquals condKind = iota
	condNotEquals
	condAbsent
)

// Cond is a precondition on one field for UpdateIf.
type Cond struct {
	Field string
	kind  condKind
	value string
}

// Equals holds when the field is present and equal to v.
func Equals(field, v string) Cond { return Cond{Field: field, kind: condEquals, value: v} }

// NotEquals holds when the field is absent or differs from v.
func NotEquals(field, v string) Cond { return Cond{Field: field, kind: condNotEquals, value: v} }

// Absent holds when the field is not set.
func Absent(field string) Cond { return Cond{Field: field, kind: condAbsent} }

func (c Cond) holds(d Doc) bool {
	cur, ok := d[c.Field]
	switch c.kind {
	case condEquals:
		return ok && cur == c.value
	case condNotEquals:
		return !ok || cur != c.value
	case condAbsent:
		return !ok
	}
	return false
}

// apply mutates d in place.
func apply(d Doc, ch Changes) {
	for f, c := range ch {
		switch c.kind {
		case opSet:
			d[f] = c.value
		case opDelete:
			delete(d, f)
		case opIncr:
			d[f] = formatInt(d.Int(f) + c.delta)
		case opAppend:
			add := strings.Join(c.values, listSep)
			if cur := d[f]; cur != "" {
				add = cur + listSep + add
			}
			d[f] = add
		}
	}
}
