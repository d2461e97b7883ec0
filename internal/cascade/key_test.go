package cascade

import (
	"testing"
	"time"
)

func TestNewKey_CanonicalizesNumericTypes(t *testing.T) {
	tests := []struct {
		name string
		a    Key
		b    Key
	}{
		{"int vs int64", NewKey(5), NewKey(int64(5))},
		{"int32 vs int64", NewKey(int32(5)), NewKey(int64(5))},
		{"uint32 vs int64", NewKey(uint32(5)), NewKey(int64(5))},
		{"small uint64 vs int64", NewKey(uint64(5)), NewKey(int64(5))},
		{"float32 vs float64", NewKey(float32(1.5)), NewKey(float64(1.5))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.a.Equal(tt.b) {
				t.Errorf("keys %v and %v not equal", tt.a, tt.b)
			}
		})
	}
}

func TestNewKey_DistinguishesTypesAndValues(t *testing.T) {
	tests := []struct {
		name string
		a    Key
		b    Key
	}{
		{"string vs number", NewKey("1"), NewKey(int64(1))},
		{"nil vs empty string", NewKey(nil), NewKey("")},
		{"nil vs zero", NewKey(nil), NewKey(int64(0))},
		{"different strings", NewKey("a"), NewKey("b")},
		{"tuple order", NewKey(int64(1), int64(2)), NewKey(int64(2), int64(1))},
		{"arity", NewKey(int64(1)), NewKey(int64(1), int64(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a.Equal(tt.b) {
				t.Errorf("keys %v and %v unexpectedly equal", tt.a, tt.b)
			}
		})
	}
}

func TestNewKey_StringFramingIsUnambiguous(t *testing.T) {
	// Adjacent string values must not be confusable with a single joined
	// value.
	a := NewKey("ab", "c")
	b := NewKey("a", "bc")
	if a.Equal(b) {
		t.Error(`NewKey("ab","c") equals NewKey("a","bc")`)
	}
}

func TestKey_String(t *testing.T) {
	if got := NewKey(int64(7)).String(); got != "7" {
		t.Errorf("scalar String() = %q, want %q", got, "7")
	}
	if got := NewKey(int64(7), "x").String(); got != "(7, x)" {
		t.Errorf("tuple String() = %q, want %q", got, "(7, x)")
	}
}

func TestKey_TimeValues(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	if !NewKey(ts).Equal(NewKey(ts)) {
		t.Error("identical timestamps produce different keys")
	}
	if NewKey(ts).Equal(NewKey(ts.Add(time.Nanosecond))) {
		t.Error("distinct timestamps produce the same key")
	}
}

func TestKeySet_AddDeduplicates(t *testing.T) {
	s := NewKeySet()
	if !s.Add(NewKey(int64(1))) {
		t.Error("first Add returned false")
	}
	if s.Add(NewKey(int64(1))) {
		t.Error("duplicate Add returned true")
	}
	if s.Add(NewKey(1)) {
		t.Error("canonically equal Add returned true")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestKeySet_InsertionOrder(t *testing.T) {
	s := NewKeySet(NewKey(int64(3)), NewKey(int64(1)), NewKey(int64(2)), NewKey(int64(1)))
	tuples := s.Tuples()
	if len(tuples) != 3 {
		t.Fatalf("Tuples() has %d entries, want 3", len(tuples))
	}
	want := []int64{3, 1, 2}
	for i, tuple := range tuples {
		if tuple[0] != any(want[i]) {
			t.Errorf("tuple %d = %v, want %d", i, tuple[0], want[i])
		}
	}
}

func TestKeySet_AddAll(t *testing.T) {
	a := NewKeySet(NewKey(int64(1)), NewKey(int64(2)))
	b := NewKeySet(NewKey(int64(2)), NewKey(int64(3)), NewKey(int64(4)))

	added := a.AddAll(b)
	if added != 2 {
		t.Errorf("AddAll added %d, want 2", added)
	}
	if a.Len() != 4 {
		t.Errorf("Len() = %d, want 4", a.Len())
	}
	if a.AddAll(b) != 0 {
		t.Error("repeated AddAll added keys")
	}
	if a.AddAll(nil) != 0 {
		t.Error("AddAll(nil) added keys")
	}
}

func TestKeySet_Contains(t *testing.T) {
	s := NewKeySet(NewKey(int64(1), "x"))
	if !s.Contains(NewKey(int64(1), "x")) {
		t.Error("Contains missed a member")
	}
	if s.Contains(NewKey(int64(1), "y")) {
		t.Error("Contains matched a non-member")
	}

	var nilSet *KeySet
	if nilSet.Contains(NewKey(int64(1))) {
		t.Error("nil set Contains returned true")
	}
	if nilSet.Len() != 0 {
		t.Errorf("nil set Len() = %d, want 0", nilSet.Len())
	}
}
