// Package store defines the record-store contract the transition engine
// depends on, an HTTP implementation of it, and an in-memory implementation
// for tests and dry runs.
package store

import (
	"context"
	"errors"

	"github.com/mkawato/shotline/internal/model"
)

// Operator is a filter comparison operator.
type Operator string

const (
	OpIs     Operator = "is"
	OpIsNot  Operator = "is_not"
	OpIn     Operator = "in"
	OpNotIn  Operator = "not_in"
	OpNameIs Operator = "name_is"
)

// Filter is one conjunctive (field, operator, value) condition.
type Filter struct {
	Field string   `json:"field"`
	Op    Operator `json:"operator"`
	Value any      `json:"value"`
}

// Order is a sort directive applied server-side.
type Order struct {
	Field     string `json:"field_name"`
	Direction string `json:"direction"`
}

var (
	Asc  = "asc"
	Desc = "desc"
)

// ErrNotFound is returned by FindOne when no record matches.
var ErrNotFound = errors.New("record not found")

// Store is the external record store. Find results preserve server
// ordering; callers that rely on "last match wins" must not resort them.
type Store interface {
	Find(ctx context.Context, entityType string, filters []Filter, fields []string, order ...Order) ([]model.Record, error)
	FindOne(ctx context.Context, entityType string, filters []Filter, fields []string) (model.Record, error)
	Update(ctx context.Context, entityType string, id int, data map[string]any) error
	Batch(ctx context.Context, ops []model.BatchOperation) ([]model.Record, error)
}

// ByID builds the canonical single-record filter.
func ByID(id int) []Filter {
	return []Filter{{Field: model.FieldID, Op: OpIs, Value: id}}
}

// RefValue renders a link value in filter wire shape.
func RefValue(r model.Ref) map[string]any {
	return map[string]any{"type": r.Type, "id": r.ID}
}
