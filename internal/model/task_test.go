package model

import "testing"

func TestTaskConfigKey(t *testing.T) {
	tests := []struct {
		name      string
		taskName  string
		splitType string
		want      string
	}{
		{"plain", "Blocking", "", "Blocking"},
		{"techfix", "Anim_TechFix", "", "Anim"},
		{"split", "Anim_p02", SplitTypeSplit, "Anim"},
		{"split techfix", "Anim_p02_TechFix", SplitTypeSplit, "Anim"},
		{"plain with underscore", "Anim_p02", "", "Anim_p02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{Name: tt.taskName, SplitType: tt.splitType}
			if got := task.ConfigKey(); got != tt.want {
				t.Errorf("ConfigKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskIsTechfix(t *testing.T) {
	if !(Task{Name: "Anim_TechFix"}).IsTechfix() {
		t.Error("expected techfix")
	}
	if (Task{Name: "Anim"}).IsTechfix() {
		t.Error("unexpected techfix")
	}
}

func TestIsTechfixSettled(t *testing.T) {
	tests := []struct {
		status  Status
		settled bool
	}{
		{StatusPublished, true},
		{StatusOmit, true},
		{StatusRejected, true},
		{StatusWIP, false},
		{StatusReview, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsTechfixSettled(tt.status); got != tt.settled {
				t.Errorf("IsTechfixSettled(%q) = %v, want %v", tt.status, got, tt.settled)
			}
		})
	}
}
