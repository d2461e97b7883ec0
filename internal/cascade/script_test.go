package cascade

import (
	"strings"
	"testing"
	"time"

	"github.com/sqlsweep/sqlsweep/internal/schema"
)

func scriptResult() *Result {
	orders := ref("orders")
	items := ref("order_items")
	return &Result{
		Operations: map[string]*Operation{
			"dbo.orders":      {Table: orders, PKColumns: []string{"id"}, IDs: idSet(1)},
			"dbo.order_items": {Table: items, PKColumns: []string{"id"}, IDs: idSet(10, 11)},
		},
		DeletionOrder: []schema.TableRef{items, orders},
	}
}

func TestRenderScript_Unbatched(t *testing.T) {
	got := RenderScript(scriptResult(), ScriptOptions{
		Connection:     "localhost:1433",
		Database:       "app",
		BatchSize:      1000,
		BatchThreshold: 0,
		GeneratedAt:    time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	})

	want := `-- Data Cleanup Script
-- Connection: localhost:1433
-- Database: app
-- Generated: 2024-03-15 10:30:00
-- Batch Processing: Disabled

BEGIN TRANSACTION;

-- Table: dbo.order_items
-- Records to delete: 2
DELETE FROM [dbo].[order_items] WHERE [id] IN (10, 11);

-- Table: dbo.orders
-- Records to delete: 1
DELETE FROM [dbo].[orders] WHERE [id] IN (1);

-- Script Summary: 3 records across 2 tables

-- COMMIT TRANSACTION;
-- ROLLBACK TRANSACTION;`

	if got != want {
		t.Errorf("RenderScript mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestRenderScript_Batched(t *testing.T) {
	res := &Result{
		Operations: map[string]*Operation{
			"dbo.orders": {Table: ref("orders"), PKColumns: []string{"id"}, IDs: idSet(1, 2, 3, 4, 5)},
		},
		DeletionOrder: []schema.TableRef{ref("orders")},
	}

	got := RenderScript(res, ScriptOptions{
		Connection:     "localhost:1433",
		Database:       "app",
		BatchSize:      2,
		BatchThreshold: 2,
		GeneratedAt:    time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	})

	for _, want := range []string{
		"-- Batch Processing: Enabled",
		"-- Batch Size: 2 records",
		"-- Batch Threshold: 2 records",
		"-- Using 3 batches of max 2 records each",
		"-- Batch 1/3: records 1-2",
		"DELETE FROM [dbo].[orders] WHERE [id] IN (1, 2);",
		"-- Batch 2/3: records 3-4",
		"DELETE FROM [dbo].[orders] WHERE [id] IN (3, 4);",
		"-- Batch 3/3: records 5-5",
		"DELETE FROM [dbo].[orders] WHERE [id] IN (5);",
		"-- 1 tables processed with batching",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("script missing %q:\n%s", want, got)
		}
	}
}

func TestRenderScript_SkipsEmptyOperations(t *testing.T) {
	res := scriptResult()
	res.Operations["dbo.empty"] = &Operation{Table: ref("empty"), PKColumns: []string{"id"}, IDs: NewKeySet()}
	res.DeletionOrder = append([]schema.TableRef{ref("empty")}, res.DeletionOrder...)

	got := RenderScript(res, ScriptOptions{GeneratedAt: time.Now()})
	if strings.Contains(got, "dbo.empty") {
		t.Error("script mentions a table with nothing to delete")
	}
}

func TestRenderScript_TransactionMarkers(t *testing.T) {
	got := RenderScript(scriptResult(), ScriptOptions{GeneratedAt: time.Now()})

	if !strings.HasPrefix(got, "-- Data Cleanup Script\n") {
		t.Error("script does not start with the header comment")
	}
	if strings.Count(got, "BEGIN TRANSACTION;") != 1 {
		t.Error("script must open exactly one transaction")
	}
	if !strings.HasSuffix(got, "-- COMMIT TRANSACTION;\n-- ROLLBACK TRANSACTION;") {
		t.Errorf("script does not end with commented commit/rollback markers:\n%s", got)
	}
	// Both closing markers stay commented so the operator chooses.
	if strings.Contains(got, "\nCOMMIT TRANSACTION;") || strings.Contains(got, "\nROLLBACK TRANSACTION;") {
		t.Error("commit/rollback emitted uncommented")
	}
}
