package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mkawato/shotline/internal/model"
)

// Memory is an in-memory Store. It backs the engine tests and the CLI
// dry-run mode. Insertion order is preserved per entity type, matching the
// server-ordering guarantee callers rely on.
type Memory struct {
	mu      sync.Mutex
	records map[string][]model.Record
	nextID  int

	// Batched collects every flushed operation, in order.
	Batched []model.BatchOperation
	// FailBatch forces the next Batch call to fail.
	FailBatch error
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string][]model.Record),
		nextID:  1000,
	}
}

// Seed inserts a record, assigning an id when none is set, and returns it.
func (m *Memory) Seed(entityType string, r model.Record) model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID() == 0 {
		m.nextID++
		r["id"] = m.nextID
	}
	if r.Str(model.FieldType) == "" {
		r[model.FieldType] = entityType
	}
	m.records[entityType] = append(m.records[entityType], r)
	return r
}

func (m *Memory) Find(ctx context.Context, entityType string, filters []Filter, fields []string, order ...Order) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Record
	for _, r := range m.records[entityType] {
		if matchesAll(r, filters) {
			out = append(out, r)
		}
	}
	for _, o := range order {
		sortRecords(out, o)
	}
	return out, nil
}

func (m *Memory) FindOne(ctx context.Context, entityType string, filters []Filter, fields []string) (model.Record, error) {
	records, err := m.Find(ctx, entityType, filters, fields)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (m *Memory) Update(ctx context.Context, entityType string, id int, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records[entityType] {
		if r.ID() == id {
			for k, v := range data {
				r[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("update %s %d: %w", entityType, id, ErrNotFound)
}

func (m *Memory) Batch(ctx context.Context, ops []model.BatchOperation) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	fail := m.FailBatch
	m.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	var results []model.Record
	for _, op := range ops {
		switch op.RequestType {
		case model.RequestCreate:
			r := model.Record{}
			for k, v := range op.Data {
				r[k] = v
			}
			results = append(results, m.Seed(op.EntityType, r))
		case model.RequestUpdate:
			if err := m.Update(ctx, op.EntityType, op.EntityID, op.Data); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown request type %q", op.RequestType)
		}
	}
	m.mu.Lock()
	m.Batched = append(m.Batched, ops...)
	m.mu.Unlock()
	return results, nil
}

func matchesAll(r model.Record, filters []Filter) bool {
	for _, f := range filters {
		if !matches(r, f) {
			return false
		}
	}
	return true
}

func matches(r model.Record, f Filter) bool {
	switch f.Op {
	case OpIs:
		return valueEquals(r, f.Field, f.Value)
	case OpIsNot:
		return !valueEquals(r, f.Field, f.Value)
	case OpIn:
		return valueIn(r, f.Field, f.Value)
	case OpNotIn:
		return !valueIn(r, f.Field, f.Value)
	case OpNameIs:
		return r.Ref(f.Field).Name == fmt.Sprint(f.Value)
	}
	return false
}

func valueEquals(r model.Record, field string, want any) bool {
	if want == nil {
		_, present := r[field]
		return !present || r[field] == nil
	}
	// Link values compare by type and id.
	if m, ok := want.(map[string]any); ok {
		wantRef := model.Record(m)
		ref := r.Ref(field)
		return ref.Type == wantRef.Str("type") && ref.ID == wantRef.Int("id")
	}
	if ref, ok := want.(model.Ref); ok {
		got := r.Ref(field)
		return got.Type == ref.Type && got.ID == ref.ID
	}
	switch want.(type) {
	case int, int64, float64:
		return r.Int(field) == toInt(want)
	}
	return fmt.Sprint(r[field]) == fmt.Sprint(want)
}

func valueIn(r model.Record, field string, want any) bool {
	items, ok := asSlice(want)
	if !ok {
		return valueEquals(r, field, want)
	}
	for _, item := range items {
		if valueEquals(r, field, item) {
			return true
		}
	}
	return false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []model.Status:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = string(item)
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func sortRecords(records []model.Record, o Order) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := fmt.Sprint(records[i][o.Field]), fmt.Sprint(records[j][o.Field])
		if o.Direction == Desc {
			return a > b
		}
		return a < b
	})
}
