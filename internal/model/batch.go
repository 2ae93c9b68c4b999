package model

type RequestType string

const (
	RequestCreate RequestType = "create"
	RequestUpdate RequestType = "update"
)

// BatchOperation is one queued record mutation. Update operations carry the
// target record id; create operations leave it zero.
type BatchOperation struct {
	RequestType RequestType    `json:"request_type"`
	EntityType  string         `json:"entity_type"`
	EntityID    int            `json:"entity_id,omitempty"`
	Data        map[string]any `json:"data"`
}

func UpdateOp(entityType string, id int, data map[string]any) BatchOperation {
	return BatchOperation{
		RequestType: RequestUpdate,
		EntityType:  entityType,
		EntityID:    id,
		Data:        data,
	}
}

func CreateOp(entityType string, data map[string]any) BatchOperation {
	return BatchOperation{
		RequestType: RequestCreate,
		EntityType:  entityType,
		Data:        data,
	}
}
