package transition

// Outcome is one per-item result row.
type Outcome struct {
	Label     string
	TaskLabel string
	Success   bool
	Reason    string
}

// Report is the ordered outcome sequence for a run. Rows are appended once
// per item and never revised.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) Succeeded(label, taskLabel string) {
	r.Add(Outcome{Label: label, TaskLabel: taskLabel, Success: true, Reason: "ok"})
}

func (r *Report) Failed(label, taskLabel, reason string) {
	r.Add(Outcome{Label: label, TaskLabel: taskLabel, Success: false, Reason: reason})
}

// Fatal collapses the report to a single synthetic row carrying the
// run-level error detail.
func Fatal(err error) Report {
	return Report{Outcomes: []Outcome{{
		Label:   "run",
		Success: false,
		Reason:  err.Error(),
	}}}
}
