package cascade

import (
	"fmt"

	"github.com/sqlsweep/sqlsweep/internal/schema"
)

// Status tracks where a task stands in the cascade walk.
type Status int

const (
	StatusPending Status = iota
	StatusProcessing
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Task is one table's pending cascade work: the rows discovered so far
// and the table's distance from the root.
type Task struct {
	Table  schema.TableRef
	Key    string
	IDs    *KeySet
	Status Status
	Level  int
}

// Queue holds at most one Task per table. Re-adding a table merges into
// its existing task instead of duplicating it.
type Queue struct {
	tasks []*Task
	byKey map[string]*Task
}

// NewQueue creates an empty processing queue.
func NewQueue() *Queue {
	return &Queue{byKey: make(map[string]*Task)}
}

// AddTask records rows to cascade for a table. If the table already has
// a task, the IDs are unioned into it and its level raised to the
// maximum of old and new; a COMPLETED task that actually gained new IDs
// is reset to PENDING so the table is walked again with the grown set.
// Returns the live task either way.
func (q *Queue) AddTask(table schema.TableRef, ids *KeySet, level int) *Task {
	key := table.Key()
	if existing, ok := q.byKey[key]; ok {
		added := existing.IDs.AddAll(ids)
		if level > existing.Level {
			existing.Level = level
		}
		if existing.Status == StatusCompleted && added > 0 {
			existing.Status = StatusPending
		}
		return existing
	}

	task := &Task{
		Table:  table,
		Key:    key,
		IDs:    NewKeySet(),
		Status: StatusPending,
		Level:  level,
	}
	task.IDs.AddAll(ids)
	q.tasks = append(q.tasks, task)
	q.byKey[key] = task
	return task
}

// NextTask returns the pending task with the smallest level, ties broken
// by insertion order, or nil when nothing is pending. Taking the
// shallowest level first keeps the walk breadth first, so a table is
// never processed at a deep level while a shallower revisit is waiting.
func (q *Queue) NextTask() *Task {
	var best *Task
	for _, t := range q.tasks {
		if t.Status != StatusPending {
			continue
		}
		if best == nil || t.Level < best.Level {
			best = t
		}
	}
	return best
}

// Task returns the task for a table key, or nil.
func (q *Queue) Task(key string) *Task {
	return q.byKey[key]
}

// MarkProcessing transitions the table's task to PROCESSING. No-op if
// the task is absent.
func (q *Queue) MarkProcessing(key string) {
	if t, ok := q.byKey[key]; ok {
		t.Status = StatusProcessing
	}
}

// MarkCompleted transitions the table's task to COMPLETED. No-op if the
// task is absent.
func (q *Queue) MarkCompleted(key string) {
	if t, ok := q.byKey[key]; ok {
		t.Status = StatusCompleted
	}
}

// HasPending reports whether any task is waiting to be processed.
func (q *Queue) HasPending() bool {
	for _, t := range q.tasks {
		if t.Status == StatusPending {
			return true
		}
	}
	return false
}

// Tasks returns every task in insertion order. Callers must not modify
// the returned slice.
func (q *Queue) Tasks() []*Task {
	return q.tasks
}

// Operations snapshots every task holding at least one row, regardless
// of status, as the final per-table cleanup operations.
func (q *Queue) Operations() map[string]*Operation {
	ops := make(map[string]*Operation)
	for _, t := range q.tasks {
		if t.IDs.Len() > 0 {
			ops[t.Key] = &Operation{Table: t.Table, IDs: t.IDs}
		}
	}
	return ops
}

// Summary renders a one-line status overview for progress output.
func (q *Queue) Summary() string {
	var pending, processing, completed, records int
	for _, t := range q.tasks {
		switch t.Status {
		case StatusPending:
			pending++
		case StatusProcessing:
			processing++
		case StatusCompleted:
			completed++
		}
		records += t.IDs.Len()
	}
	return fmt.Sprintf("tasks: %d pending, %d processing, %d completed, %d records",
		pending, processing, completed, records)
}
