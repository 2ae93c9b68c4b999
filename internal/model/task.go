package model

import "strings"

// TechfixSuffix marks a corrective sub-task raised against an already
// advanced task.
const TechfixSuffix = "_TechFix"

// SplitTypeSplit marks a task that was split out of a larger one.
const SplitTypeSplit = "SPLIT"

// Task is the typed view over a Task record.
type Task struct {
	ID              int
	Name            string
	Status          Status
	Step            string
	Link            Ref
	Project         Ref
	SplitType       string
	TeamLeadID      int
	SupervisorID    int
	InternalVersion int
	ClientVersion   int
	StartDate       string
	DueDate         string
}

func TaskFromRecord(r Record) Task {
	return Task{
		ID:              r.ID(),
		Name:            r.Str(FieldTaskName),
		Status:          r.Status(FieldStatus),
		Step:            r.Ref(FieldTaskStep).Name,
		Link:            r.Ref(FieldTaskLink),
		Project:         r.Ref(FieldProject),
		SplitType:       r.Str(FieldTaskSplitType),
		TeamLeadID:      r.Ref(FieldTaskTeamLead).ID,
		SupervisorID:    r.Ref(FieldTaskSupervisor).ID,
		InternalVersion: r.Int(FieldTaskInternalVersion),
		ClientVersion:   r.Int(FieldTaskClientVersion),
		StartDate:       r.Str(FieldTaskStartDate),
		DueDate:         r.Str(FieldTaskDueDate),
	}
}

func (t Task) Ref() Ref {
	return Ref{Type: EntityTask, ID: t.ID, Name: t.Name}
}

// IsTechfix reports whether the task is a techfix task by its name suffix.
func (t Task) IsTechfix() bool {
	return strings.HasSuffix(t.Name, TechfixSuffix)
}

// ConfigKey returns the task-name key used to look up the transition
// configuration. Techfix and split tasks resolve to the prefix before the
// first underscore of the original task name.
func (t Task) ConfigKey() string {
	if t.IsTechfix() || t.SplitType == SplitTypeSplit {
		name, _, _ := strings.Cut(t.Name, "_")
		return name
	}
	return t.Name
}
