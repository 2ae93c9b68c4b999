package model

// Record is a raw record as returned by the record store: a flat map of
// field code to value. Linked entities appear as nested maps with "type",
// "id" and usually "name" keys.
type Record map[string]any

// Ref is a link to another record.
type Ref struct {
	Type string
	ID   int
	Name string
}

func (r Ref) IsZero() bool {
	return r.Type == "" && r.ID == 0
}

// Map renders the reference in the wire shape the store expects.
func (r Ref) Map() map[string]any {
	m := map[string]any{"type": r.Type, "id": r.ID}
	if r.Name != "" {
		m["name"] = r.Name
	}
	return m
}

func (r Record) ID() int {
	return r.Int("id")
}

// Str returns the named field as a string, or "" when absent or not a
// string.
func (r Record) Str(field string) string {
	s, _ := r[field].(string)
	return s
}

// Int returns the named field as an int. JSON decoding yields float64 for
// numbers, so both forms are accepted.
func (r Record) Int(field string) int {
	switch v := r[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns the named field as a truthy flag. Checkbox fields arrive
// as booleans over the wire but as plain strings from older records, so
// both forms are accepted.
func (r Record) Bool(field string) bool {
	switch v := r[field].(type) {
	case bool:
		return v
	case string:
		return v != ""
	}
	return false
}

// Ref returns the named field as an entity link. The zero Ref is returned
// when the field is absent or null.
func (r Record) Ref(field string) Ref {
	m, ok := r[field].(map[string]any)
	if !ok {
		return Ref{}
	}
	sub := Record(m)
	return Ref{
		Type: sub.Str("type"),
		ID:   sub.Int("id"),
		Name: sub.Str("name"),
	}
}

func (r Record) Status(field string) Status {
	return Status(r.Str(field))
}
