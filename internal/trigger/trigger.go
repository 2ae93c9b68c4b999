// Package trigger parses action-invocation URLs of the form
//
//	shotline://publish?user_id=24&user_login=jdoe&entity_type=Task&selected_ids=2,5&...
//
// into a normalized context the transition engine consumes.
package trigger

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mkawato/shotline/internal/model"
	"github.com/mkawato/shotline/internal/store"
)

// Context is the normalized invocation context.
type Context struct {
	Protocol    string
	Action      model.Action
	EntityType  string
	Project     model.Ref
	IDs         []int
	SelectedIDs []int
	Sort        *Sort
	// Columns and ColumnNames accumulate across repeated cols /
	// column_display_names parameters.
	Columns     []string
	ColumnNames []string
	User        User
	SessionID   uuid.UUID
	// Attachments maps a publish-slot name to a locally selected path,
	// carried by repeated attachment=<slot>:<path> parameters (submit flow).
	Attachments map[string]string
}

type Sort struct {
	Column    string
	Direction string
}

type User struct {
	ID    int
	Login string
}

// Parse splits an invocation URL into protocol, action, and parameters and
// validates the parts the engine depends on. Unknown actions are rejected
// here, before any item is processed.
func Parse(raw string) (*Context, error) {
	protocol, rest, ok := strings.Cut(raw, "://")
	if !ok || protocol == "" {
		return nil, fmt.Errorf("invocation URL %q has no protocol", raw)
	}
	actionPart, query, _ := strings.Cut(rest, "?")
	actionPart = strings.Trim(actionPart, "/")

	action, err := model.ParseAction(actionPart)
	if err != nil {
		return nil, fmt.Errorf("parse invocation: %w", err)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("parse invocation parameters: %w", err)
	}

	ctx := &Context{
		Protocol:    protocol,
		Action:      action,
		EntityType:  params.Get("entity_type"),
		Attachments: map[string]string{},
	}
	if ctx.EntityType == "" {
		return nil, fmt.Errorf("invocation is missing entity_type")
	}

	if v := params.Get("project_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid project_id %q", v)
		}
		ctx.Project = model.Ref{Type: model.EntityProject, ID: id, Name: params.Get("project_name")}
	}

	if ctx.IDs, err = parseIDList(params.Get("ids")); err != nil {
		return nil, fmt.Errorf("invalid ids: %w", err)
	}
	if ctx.SelectedIDs, err = parseIDList(params.Get("selected_ids")); err != nil {
		return nil, fmt.Errorf("invalid selected_ids: %w", err)
	}

	if col := params.Get("sort_column"); col != "" {
		ctx.Sort = &Sort{Column: col, Direction: params.Get("sort_direction")}
	}
	ctx.Columns = append(ctx.Columns, params["cols"]...)
	ctx.ColumnNames = append(ctx.ColumnNames, params["column_display_names"]...)

	if v := params.Get("user_id"); v != "" {
		if ctx.User.ID, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid user_id %q", v)
		}
	}
	ctx.User.Login = params.Get("user_login")

	if v := params.Get("session_uuid"); v != "" {
		if ctx.SessionID, err = uuid.Parse(v); err != nil {
			return nil, fmt.Errorf("invalid session_uuid %q: %w", v, err)
		}
	}

	for _, att := range params["attachment"] {
		slot, path, ok := strings.Cut(att, ":")
		if !ok || slot == "" || path == "" {
			return nil, fmt.Errorf("invalid attachment %q, want <slot>:<path>", att)
		}
		ctx.Attachments[slot] = path
	}

	return ctx, nil
}

// SelectedFilter renders the selection as a store id filter.
func (c *Context) SelectedFilter() []store.Filter {
	return []store.Filter{{Field: model.FieldID, Op: store.OpIn, Value: c.SelectedIDs}}
}

func parseIDList(csv string) ([]int, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
