package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

// mockAdapter is a minimal adapter for testing the registry.
type mockAdapter struct {
	name string
	port int
}

func (m *mockAdapter) Name() string              { return m.name }
func (m *mockAdapter) DefaultPort() int          { return m.port }
func (m *mockAdapter) Quote(ident string) string { return "[" + ident + "]" }
func (m *mockAdapter) Connect(_ context.Context, _ string) (Connection, error) {
	return nil, errors.New("mock: not implemented")
}

func TestRegister(t *testing.T) {
	// Save and restore original registry state.
	orig := make(map[string]Adapter)
	for k, v := range Registry {
		orig[k] = v
	}
	defer func() {
		Registry = orig
	}()

	// Clear registry for this test.
	Registry = map[string]Adapter{}

	mock := &mockAdapter{name: "testdb", port: 9999}
	Register(mock)

	got, ok := Get("testdb")
	if !ok {
		t.Fatal("expected adapter 'testdb' to be registered")
	}
	if got.Name() != "testdb" {
		t.Errorf("Name() = %q, want %q", got.Name(), "testdb")
	}
	if got.DefaultPort() != 9999 {
		t.Errorf("DefaultPort() = %d, want %d", got.DefaultPort(), 9999)
	}
}

func TestRegister_Multiple(t *testing.T) {
	orig := make(map[string]Adapter)
	for k, v := range Registry {
		orig[k] = v
	}
	defer func() {
		Registry = orig
	}()

	Registry = map[string]Adapter{}

	adapters := []struct {
		name string
		port int
	}{
		{"alpha", 1111},
		{"bravo", 2222},
		{"charlie", 3333},
	}

	for _, a := range adapters {
		Register(&mockAdapter{name: a.name, port: a.port})
	}

	if len(Registry) != 3 {
		t.Fatalf("expected 3 adapters in registry, got %d", len(Registry))
	}
	if len(Names()) != 3 {
		t.Fatalf("Names() length = %d, want 3", len(Names()))
	}

	for _, a := range adapters {
		got, ok := Registry[a.name]
		if !ok {
			t.Errorf("adapter %q not found in registry", a.name)
			continue
		}
		if got.Name() != a.name {
			t.Errorf("Name() = %q, want %q", got.Name(), a.name)
		}
		if got.DefaultPort() != a.port {
			t.Errorf("DefaultPort() for %q = %d, want %d", a.name, got.DefaultPort(), a.port)
		}
	}
}

func TestSentinelEOF(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"io.EOF returns true", io.EOF, true},
		{"nil returns false", nil, false},
		{"other error returns false", errors.New("some error"), false},
		{"wrapped io.EOF returns true", fmt.Errorf("wrap: %w", io.EOF), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SentinelEOF(tt.err); got != tt.want {
				t.Errorf("SentinelEOF(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestQueryResult_IsSelect(t *testing.T) {
	selectResult := &QueryResult{
		IsSelect: true,
		RowCount: 5,
		Columns:  []ColumnMeta{{Name: "id", Type: "int4"}},
	}
	if !selectResult.IsSelect {
		t.Error("expected IsSelect to be true")
	}

	nonSelectResult := &QueryResult{
		IsSelect: false,
		RowCount: 1,
		Message:  "DELETE 1",
	}
	if nonSelectResult.IsSelect {
		t.Error("expected IsSelect to be false")
	}
}

func TestColumnMeta(t *testing.T) {
	col := ColumnMeta{
		Name:     "user_id",
		Type:     "int4",
		Nullable: true,
	}

	if col.Name != "user_id" {
		t.Errorf("Name = %q, want %q", col.Name, "user_id")
	}
	if col.Type != "int4" {
		t.Errorf("Type = %q, want %q", col.Type, "int4")
	}
	if !col.Nullable {
		t.Error("expected Nullable to be true")
	}

	nonNullCol := ColumnMeta{
		Name:     "email",
		Type:     "varchar",
		Nullable: false,
	}
	if nonNullCol.Nullable {
		t.Error("expected Nullable to be false")
	}
}

func TestErrors(t *testing.T) {
	// All sentinel errors must be non-nil.
	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrNoBidirectional", ErrNoBidirectional},
		{"ErrNotConnected", ErrNotConnected},
		{"ErrCancelled", ErrCancelled},
		{"ErrNotSupported", ErrNotSupported},
	}
	for _, s := range sentinels {
		if s.err == nil {
			t.Errorf("%s is nil", s.name)
		}
	}

	// All sentinel errors must be distinct.
	for i, a := range sentinels {
		for _, b := range sentinels[i+1:] {
			if errors.Is(a.err, b.err) {
				t.Errorf("%s and %s should be distinct", a.name, b.name)
			}
		}
	}

	// Verify error messages are non-empty and distinct.
	msgs := map[string]bool{}
	for _, s := range sentinels {
		msgs[s.err.Error()] = true
	}
	if len(msgs) != len(sentinels) {
		t.Error("expected distinct error messages for all sentinels")
	}
}
