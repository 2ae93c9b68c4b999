// Package report renders a run's outcome rows for the terminal and writes
// the persistent HTML run log.
package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mkawato/shotline/internal/transition"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	frameStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// Render produces the terminal table for a run report.
func Render(r transition.Report) string {
	cols := []string{"ITEM", "TASK", "RESULT", "REASON"}
	rows := make([][]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		result := "OK"
		if !o.Success {
			result = "FAILED"
		}
		rows = append(rows, []string{o.Label, o.TaskLabel, result, o.Reason})
	}

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(renderRow(cols, widths)))
	for _, row := range rows {
		b.WriteByte('\n')
		style := okStyle
		if row[2] == "FAILED" {
			style = failStyle
		}
		b.WriteString(style.Render(renderRow(row, widths)))
	}
	return frameStyle.Render(b.String())
}

func renderRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}
	return strings.Join(padded, "  ")
}

var logTemplate = template.Must(template.New("runlog").Parse(`<!DOCTYPE html>
<html>
<head><title>Transition run {{.Timestamp}}</title></head>
<body>
<h2>Transition run &mdash; {{.User}} &mdash; {{.Timestamp}}</h2>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Item</th><th>Task</th><th>Result</th><th>Reason</th></tr>
{{- range .Outcomes}}
<tr><td>{{.Label}}</td><td>{{.TaskLabel}}</td><td>{{if .Success}}OK{{else}}FAILED{{end}}</td><td>{{.Reason}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

type logData struct {
	User      string
	Timestamp string
	Outcomes  []transition.Outcome
}

// WriteLog persists the run report as an HTML file named
// <user>_<timestamp>.html under folder, and returns the written path. The
// file appears atomically: it is staged next to its final name and renamed
// into place.
func WriteLog(folder, user string, at time.Time, r transition.Report) (string, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create log folder: %w", err)
	}

	name := fmt.Sprintf("%s_%s.html", user, at.Format("20060102-150405"))
	path := filepath.Join(folder, name)

	tmp, err := os.CreateTemp(folder, name+".tmp")
	if err != nil {
		return "", fmt.Errorf("stage run log: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	data := logData{User: user, Timestamp: at.Format(time.RFC3339), Outcomes: r.Outcomes}
	if err := logTemplate.Execute(tmp, data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("render run log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close run log: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish run log: %w", err)
	}
	return path, nil
}
