package cascade

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sqlsweep/sqlsweep/internal/schema"
)

func ref(name string) schema.TableRef {
	return schema.TableRef{Schema: "dbo", Name: name}
}

func idSet(ids ...int64) *KeySet {
	s := NewKeySet()
	for _, id := range ids {
		s.Add(NewKey(id))
	}
	return s
}

func TestQueue_AddTaskCreates(t *testing.T) {
	q := NewQueue()
	task := q.AddTask(ref("orders"), idSet(1, 2), 0)

	if task.Key != "dbo.orders" {
		t.Errorf("task key = %q, want %q", task.Key, "dbo.orders")
	}
	if task.Status != StatusPending {
		t.Errorf("task status = %v, want pending", task.Status)
	}
	if task.IDs.Len() != 2 {
		t.Errorf("task has %d ids, want 2", task.IDs.Len())
	}
}

func TestQueue_AddTaskMerges(t *testing.T) {
	q := NewQueue()
	first := q.AddTask(ref("orders"), idSet(1, 2), 1)
	second := q.AddTask(ref("orders"), idSet(2, 3), 3)

	if first != second {
		t.Fatal("merge created a second task for the same table")
	}
	if second.IDs.Len() != 3 {
		t.Errorf("merged ids = %d, want 3", second.IDs.Len())
	}
	if second.Level != 3 {
		t.Errorf("merged level = %d, want 3", second.Level)
	}

	// A shallower revisit must not lower the level.
	q.AddTask(ref("orders"), idSet(4), 0)
	if second.Level != 3 {
		t.Errorf("level after shallow revisit = %d, want 3", second.Level)
	}
}

func TestQueue_CompletedResetOnlyWhenIDsGrow(t *testing.T) {
	q := NewQueue()
	q.AddTask(ref("orders"), idSet(1, 2), 0)
	q.MarkCompleted("dbo.orders")

	// Same IDs again: stays completed.
	task := q.AddTask(ref("orders"), idSet(1, 2), 1)
	if task.Status != StatusCompleted {
		t.Errorf("status after no-growth merge = %v, want completed", task.Status)
	}

	// New ID: reset to pending for reprocessing.
	task = q.AddTask(ref("orders"), idSet(3), 1)
	if task.Status != StatusPending {
		t.Errorf("status after growth merge = %v, want pending", task.Status)
	}
	if task.IDs.Len() != 3 {
		t.Errorf("ids after growth merge = %d, want 3", task.IDs.Len())
	}
}

func TestQueue_ProcessingNotResetByMerge(t *testing.T) {
	q := NewQueue()
	q.AddTask(ref("orders"), idSet(1), 0)
	q.MarkProcessing("dbo.orders")

	task := q.AddTask(ref("orders"), idSet(2), 1)
	if task.Status != StatusProcessing {
		t.Errorf("status after merge into processing task = %v, want processing", task.Status)
	}
}

func TestQueue_NextTaskLowestLevelFirst(t *testing.T) {
	q := NewQueue()
	q.AddTask(ref("level2"), idSet(1), 2)
	q.AddTask(ref("level0"), idSet(2), 0)
	q.AddTask(ref("level1"), idSet(3), 1)

	task := q.NextTask()
	if task == nil || task.Key != "dbo.level0" {
		t.Fatalf("NextTask = %v, want dbo.level0", task)
	}

	q.MarkCompleted("dbo.level0")
	task = q.NextTask()
	if task == nil || task.Key != "dbo.level1" {
		t.Fatalf("NextTask = %v, want dbo.level1", task)
	}
}

func TestQueue_NextTaskTiesByInsertionOrder(t *testing.T) {
	q := NewQueue()
	q.AddTask(ref("first"), idSet(1), 1)
	q.AddTask(ref("second"), idSet(2), 1)

	task := q.NextTask()
	if task == nil || task.Key != "dbo.first" {
		t.Fatalf("NextTask = %v, want dbo.first", task)
	}
}

func TestQueue_NextTaskEmpty(t *testing.T) {
	q := NewQueue()
	if task := q.NextTask(); task != nil {
		t.Errorf("NextTask on empty queue = %v, want nil", task)
	}

	q.AddTask(ref("orders"), idSet(1), 0)
	q.MarkCompleted("dbo.orders")
	if task := q.NextTask(); task != nil {
		t.Errorf("NextTask with all completed = %v, want nil", task)
	}
	if q.HasPending() {
		t.Error("HasPending true with all completed")
	}
}

func TestQueue_MarkAbsentKeyIsNoop(t *testing.T) {
	q := NewQueue()
	q.MarkProcessing("dbo.ghost")
	q.MarkCompleted("dbo.ghost")
	if q.Task("dbo.ghost") != nil {
		t.Error("marking an absent key created a task")
	}
}

func TestQueue_Operations(t *testing.T) {
	q := NewQueue()
	q.AddTask(ref("orders"), idSet(1, 2), 0)
	q.AddTask(ref("empty"), NewKeySet(), 1)
	q.AddTask(ref("items"), idSet(10), 1)
	q.MarkCompleted("dbo.orders")

	ops := q.Operations()
	if len(ops) != 2 {
		t.Fatalf("Operations returned %d entries, want 2", len(ops))
	}
	if _, ok := ops["dbo.empty"]; ok {
		t.Error("Operations included a table with no ids")
	}
	if ops["dbo.orders"].IDs.Len() != 2 {
		t.Errorf("orders operation has %d ids, want 2", ops["dbo.orders"].IDs.Len())
	}
}

func TestQueue_Summary(t *testing.T) {
	q := NewQueue()
	q.AddTask(ref("a"), idSet(1, 2), 0)
	q.AddTask(ref("b"), idSet(3), 1)
	q.MarkCompleted("dbo.a")

	want := "tasks: 1 pending, 0 processing, 1 completed, 3 records"
	if got := q.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestQueue_MergeProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Whatever order IDs arrive for a table, the task must end with the
	// union of all IDs and the maximum level ever offered.
	properties.Property("task accumulates union of ids and max level", prop.ForAll(
		func(batches [][]int64, levels []int) bool {
			q := NewQueue()
			wantIDs := make(map[int64]bool)
			wantLevel := 0
			for i, batch := range batches {
				level := 0
				if i < len(levels) {
					level = levels[i]
				}
				if level > wantLevel {
					wantLevel = level
				}
				q.AddTask(ref("orders"), idSet(batch...), level)
				for _, id := range batch {
					wantIDs[id] = true
				}
			}
			task := q.Task("dbo.orders")
			if len(batches) == 0 {
				return task == nil
			}
			if task.IDs.Len() != len(wantIDs) || task.Level != wantLevel {
				return false
			}
			for _, k := range task.IDs.Keys() {
				if !wantIDs[k.Values()[0].(int64)] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.Int64Range(0, 50))),
		gen.SliceOf(gen.IntRange(0, 10)),
	))

	properties.TestingRun(t)
}
