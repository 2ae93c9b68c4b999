package model

// TrackedEntity is the typed view over the Shot or Asset a task is linked
// to. Type-specific attributes are zero-valued for the other type.
type TrackedEntity struct {
	ID          int
	Type        string
	Name        string
	Status      Status
	CutDuration int    // Shot
	SceneCode   string // Shot
	AssetType   string // Asset
	Slot        string // Asset
}

func EntityFromRecord(r Record) TrackedEntity {
	return TrackedEntity{
		ID:          r.ID(),
		Type:        r.Str(FieldType),
		Name:        r.Str(FieldCode),
		Status:      r.Status(FieldStatus),
		CutDuration: r.Int(FieldShotCutDuration),
		SceneCode:   r.Str(FieldSceneCode),
		AssetType:   r.Str(FieldAssetType),
		Slot:        r.Ref(FieldAssetSlot).Name,
	}
}

func (e TrackedEntity) Ref() Ref {
	return Ref{Type: e.Type, ID: e.ID, Name: e.Name}
}

// Version is the typed view over a Version record.
type Version struct {
	ID     int
	Name   string
	Status Status
	Task   Ref
	Link   Ref
}

func VersionFromRecord(r Record) Version {
	return Version{
		ID:     r.ID(),
		Name:   r.Str(FieldCode),
		Status: r.Status(FieldStatus),
		Task:   r.Ref(FieldVersionTask),
		Link:   r.Ref(FieldVersionLink),
	}
}

// User is the typed view over a HumanUser record.
type User struct {
	ID    int
	Login string
	Role  string
}

func UserFromRecord(r Record) User {
	return User{
		ID:    r.ID(),
		Login: r.Str(FieldUserLogin),
		Role:  r.Ref(FieldUserRole).Name,
	}
}

// TechFixRecord links a techfix task to its originating task.
type TechFixRecord struct {
	ID       int
	Task     Ref
	FromTask Ref
	Project  Ref
	Status   Status
}

func TechFixFromRecord(r Record) TechFixRecord {
	return TechFixRecord{
		ID:       r.ID(),
		Task:     r.Ref(FieldTechfixTask),
		FromTask: r.Ref(FieldTechfixFrom),
		Project:  r.Ref(FieldProject),
		Status:   r.Status(FieldStatus),
	}
}
