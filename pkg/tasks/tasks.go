// pkg/tasks/tasks.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package tasks defines the tasks an aircraft cycles through while under
// the control of the tower and the circular task list that sequences them.
package tasks

import (
	"fmt"
	"strconv"
	"strings"
)

type TaskType int

const (
	Away TaskType = iota
	Land
	Wait
	Load
	Takeoff
)

var taskTypeNames = [...]string{
	Away:    "AWAY",
	Land:    "LAND",
	Wait:    "WAIT",
	Load:    "LOAD",
	Takeoff: "TAKEOFF",
}

func (t TaskType) String() string {
	if t < 0 || int(t) >= len(taskTypeNames) {
		return "TaskType(" + strconv.Itoa(int(t)) + ")"
	}
	return taskTypeNames[t]
}

// ParseTaskType returns the TaskType with the given name; names are case
// sensitive.
func ParseTaskType(s string) (TaskType, bool) {
	for i, name := range taskTypeNames {
		if name == s {
			return TaskType(i), true
		}
	}
	return 0, false
}

// allowedNext records which task types may immediately follow each task
// type in a task list.
var allowedNext = map[TaskType][]TaskType{
	Away:    {Away, Land},
	Land:    {Wait, Load},
	Wait:    {Wait, Load},
	Load:    {Takeoff},
	Takeoff: {Away},
}

// CanFollow reports whether a task of type next may come directly after a
// task of type cur.
func CanFollow(cur, next TaskType) bool {
	for _, t := range allowedNext[cur] {
		if t == next {
			return true
		}
	}
	return false
}

///////////////////////////////////////////////////////////////////////////
// Task

// Task is an immutable (type, load percentage) pair. LoadPercent is only
// meaningful for Load tasks; the constructors keep it zero for everything
// else so that Tasks can be compared with ==.
type Task struct {
	Type        TaskType
	LoadPercent int
}

func MakeTask(t TaskType) Task {
	return Task{Type: t}
}

func MakeLoadTask(percent int) Task {
	return Task{Type: Load, LoadPercent: percent}
}

// Equal compares tasks by type and, for Load tasks only, load percentage.
func (t Task) Equal(o Task) bool {
	if t.Type != o.Type {
		return false
	}
	return t.Type != Load || t.LoadPercent == o.LoadPercent
}

func (t Task) String() string {
	if t.Type == Load {
		return fmt.Sprintf("LOAD at %d%%", t.LoadPercent)
	}
	return t.Type.String()
}

// Encode returns the persisted form of the task: "LOAD@pct" for load
// tasks and the bare type name otherwise.
func (t Task) Encode() string {
	if t.Type == Load {
		return "LOAD@" + strconv.Itoa(t.LoadPercent)
	}
	return t.Type.String()
}

///////////////////////////////////////////////////////////////////////////
// TaskList

// TaskList is a fixed circular sequence of tasks with a cursor marking the
// current one. Its contents never change after construction; only the
// cursor moves, and only through Advance.
type TaskList struct {
	tasks   []Task
	current int
}

// NewTaskList validates every circular adjacency of the given tasks
// (including last -> first) and returns a TaskList whose current task is
// tasks[0]. The returned error wraps ErrInvalidTaskSequence.
func NewTaskList(tasks []Task) (*TaskList, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: empty task list", ErrInvalidTaskSequence)
	}
	for i, cur := range tasks {
		next := tasks[(i+1)%len(tasks)]
		if !CanFollow(cur.Type, next.Type) {
			return nil, fmt.Errorf("%w: %s cannot be followed by %s (position %d)",
				ErrInvalidTaskSequence, cur.Type, next.Type, i+1)
		}
		if cur.Type != Load && cur.LoadPercent != 0 {
			return nil, fmt.Errorf("%w: %s task with load percentage %d",
				ErrInvalidTaskSequence, cur.Type, cur.LoadPercent)
		}
		if cur.LoadPercent < 0 {
			return nil, fmt.Errorf("%w: negative load percentage %d",
				ErrInvalidTaskSequence, cur.LoadPercent)
		}
	}
	return &TaskList{tasks: append([]Task(nil), tasks...)}, nil
}

// MustNewTaskList is like NewTaskList but panics on an invalid sequence;
// it is intended for literal task lists known to be valid.
func MustNewTaskList(tasks ...Task) *TaskList {
	tl, err := NewTaskList(tasks)
	if err != nil {
		panic(err)
	}
	return tl
}

// Current returns the task at the cursor.
func (tl *TaskList) Current() Task {
	return tl.tasks[tl.current]
}

// PeekNext returns the task after the current one without moving the
// cursor.
func (tl *TaskList) PeekNext() Task {
	return tl.tasks[(tl.current+1)%len(tl.tasks)]
}

// Advance moves the cursor forward by one, wrapping around at the end.
func (tl *TaskList) Advance() {
	tl.current = (tl.current + 1) % len(tl.tasks)
}

func (tl *TaskList) Len() int {
	return len(tl.tasks)
}

// Tasks returns the tasks in circular order starting from the current
// one. The returned slice is a copy.
func (tl *TaskList) Tasks() []Task {
	r := make([]Task, 0, len(tl.tasks))
	r = append(r, tl.tasks[tl.current:]...)
	return append(r, tl.tasks[:tl.current]...)
}

// Encode returns the comma-separated persisted form of the list. The
// first token is always the current task, so decoding the result yields
// a list positioned on the same task.
func (tl *TaskList) Encode() string {
	var sb strings.Builder
	for i, t := range tl.Tasks() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(t.Encode())
	}
	return sb.String()
}

func (tl *TaskList) String() string {
	return fmt.Sprintf("TaskList currently on %s [%d/%d]", tl.Current(), tl.current+1, len(tl.tasks))
}
