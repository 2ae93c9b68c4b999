// Package pathtmpl expands work-area path templates into absolute paths.
// Templates come from transition-config records and use angle-bracket
// tokens, e.g. "<PROJECT>/<TYPE>/<ENTITY>/<STEP>/v<VERSION>/<ENTITY>_<STEP>.<EXT>".
package pathtmpl

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mkawato/shotline/internal/model"
)

// Service resolves a template against a task/entity pair.
type Service interface {
	Build(ctx context.Context, template string, exts []string, task model.Task, entity model.TrackedEntity, publish bool) (string, error)
}

// Expander is the default Service: token substitution under a work or
// publish root.
type Expander struct {
	WorkRoot    string
	PublishRoot string
}

var tokenRe = regexp.MustCompile(`<[A-Z]+>`)

func (e *Expander) Build(_ context.Context, template string, exts []string, task model.Task, entity model.TrackedEntity, publish bool) (string, error) {
	if template == "" {
		return "", fmt.Errorf("empty path template")
	}

	ext := ""
	if len(exts) > 0 {
		ext = exts[len(exts)-1]
	}
	values := map[string]string{
		"<PROJECT>": task.Project.Name,
		"<TYPE>":    strings.ToLower(entity.Type),
		"<ENTITY>":  entity.Name,
		"<STEP>":    task.Step,
		"<TASK>":    task.Name,
		"<VERSION>": fmt.Sprintf("%03d", task.InternalVersion),
		"<EXT>":     ext,
	}

	var missing []string
	expanded := tokenRe.ReplaceAllStringFunc(template, func(tok string) string {
		v, ok := values[tok]
		if !ok || v == "" && tok != "<EXT>" {
			missing = append(missing, tok)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q: unresolved tokens %s", template, strings.Join(missing, ", "))
	}

	// An extension-less file token leaves a trailing dot behind.
	expanded = strings.TrimSuffix(expanded, ".")

	root := e.WorkRoot
	if publish {
		root = e.PublishRoot
	}
	if root == "" || filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	return filepath.Join(root, expanded), nil
}
