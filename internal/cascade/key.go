// Package cascade computes referential cascade deletion plans: given a
// root table and its matched primary key values, it walks the discovered
// foreign-key graph breadth first, collects every dependent row, and
// renders the result as level-ordered DELETE operations.
package cascade

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Key identifies one row by its primary key values: a single scalar for
// the common case, an ordered tuple for composite keys. Values are
// canonicalized at construction so that the same row read through
// different drivers compares equal.
type Key struct {
	values []any
	id     string
}

// NewKey builds a key from primary key values in column order.
func NewKey(values ...any) Key {
	canon := make([]any, len(values))
	for i, v := range values {
		canon[i] = canonicalValue(v)
	}

	var b strings.Builder
	for _, v := range canon {
		appendCanonical(&b, v)
	}
	return Key{values: canon, id: b.String()}
}

// Values returns the canonical values in column order. Callers must not
// modify the returned slice.
func (k Key) Values() []any { return k.values }

// Arity returns the number of columns in the key.
func (k Key) Arity() int { return len(k.values) }

// Equal reports whether two keys identify the same row.
func (k Key) Equal(other Key) bool { return k.id == other.id }

func (k Key) String() string {
	if len(k.values) == 1 {
		return fmt.Sprint(k.values[0])
	}
	parts := make([]string, len(k.values))
	for i, v := range k.values {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// canonicalValue widens machine integer and float variants to the int64
// and float64 forms the adapters' QueryValues promise.
func canonicalValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return canonicalValue(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
		return val
	case float32:
		return float64(val)
	default:
		return v
	}
}

// appendCanonical writes a type-tagged, length-framed encoding of one
// value. Two keys are the same row iff their encodings match.
func appendCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("~;")
	case string:
		b.WriteString("s")
		b.WriteString(strconv.Itoa(len(val)))
		b.WriteString(":")
		b.WriteString(val)
		b.WriteString(";")
	case int64:
		b.WriteString("i")
		b.WriteString(strconv.FormatInt(val, 10))
		b.WriteString(";")
	case uint64:
		b.WriteString("u")
		b.WriteString(strconv.FormatUint(val, 10))
		b.WriteString(";")
	case float64:
		b.WriteString("f")
		b.WriteString(strconv.FormatFloat(val, 'b', -1, 64))
		b.WriteString(";")
	case bool:
		if val {
			b.WriteString("b1;")
		} else {
			b.WriteString("b0;")
		}
	case time.Time:
		b.WriteString("t")
		b.WriteString(strconv.FormatInt(val.UnixNano(), 10))
		b.WriteString(";")
	case []byte:
		b.WriteString("x")
		b.WriteString(hex.EncodeToString(val))
		b.WriteString(";")
	default:
		fmt.Fprintf(b, "o%T:%v;", val, val)
	}
}

// KeySet is an insertion-ordered set of Keys. Ordered iteration keeps
// generated SQL deterministic for a given discovery order.
type KeySet struct {
	members map[string]struct{}
	keys    []Key
}

// NewKeySet builds a set from the given keys, dropping duplicates.
func NewKeySet(keys ...Key) *KeySet {
	s := &KeySet{members: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts the key and reports whether it was not already present.
func (s *KeySet) Add(k Key) bool {
	if _, ok := s.members[k.id]; ok {
		return false
	}
	s.members[k.id] = struct{}{}
	s.keys = append(s.keys, k)
	return true
}

// AddAll unions another set into this one and returns how many keys were
// newly added.
func (s *KeySet) AddAll(other *KeySet) int {
	if other == nil {
		return 0
	}
	added := 0
	for _, k := range other.keys {
		if s.Add(k) {
			added++
		}
	}
	return added
}

// Contains reports whether the key is in the set.
func (s *KeySet) Contains(k Key) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[k.id]
	return ok
}

// Len returns the number of keys in the set.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the set's keys in insertion order. Callers must not
// modify the returned slice.
func (s *KeySet) Keys() []Key {
	if s == nil {
		return nil
	}
	return s.keys
}

// Tuples returns the keys' value tuples in insertion order, the shape
// the SQL predicate builders consume.
func (s *KeySet) Tuples() [][]any {
	if s == nil {
		return nil
	}
	tuples := make([][]any, len(s.keys))
	for i, k := range s.keys {
		tuples[i] = k.values
	}
	return tuples
}
