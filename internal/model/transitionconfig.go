package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Slot selection types.
const (
	SlotFile   = "File"
	SlotFiles  = "Files"
	SlotFolder = "Folder"
)

// TransitionConfig is the parsed form of one transition-config record. The
// raw record is retained because work-area and distribution-tag names inside
// the file map address template fields on the record itself.
type TransitionConfig struct {
	Record     Record
	EntityType string
	Step       string
	TaskName   string
	QCProcess  bool
	StatusMaps map[Action]map[Status]Status
	FileMaps   map[Status]map[string]SlotConfig
}

// SlotConfig is one named file/folder requirement.
type SlotConfig struct {
	Type      string
	Filter    string
	Mandatory bool
	Workarea  string
	Upload    bool
	Ignore    []string
	// Tags maps a distribution tag (e.g. "server") to the config-record
	// field holding that tag's destination template.
	Tags map[string]string
}

// Template returns the path template stored under the named config-record
// field.
func (c *TransitionConfig) Template(field string) string {
	return c.Record.Str(field)
}

// ParseTransitionConfig decodes the string-encoded status and file maps of
// a config record. Both maps must be present and non-empty; anything else
// is reported as an empty config.
func ParseTransitionConfig(r Record) (*TransitionConfig, error) {
	cfg := &TransitionConfig{
		Record:     r,
		EntityType: r.Str(FieldConfigEntityType),
		Step:       r.Str(FieldConfigStep),
		TaskName:   r.Str(FieldConfigTaskName),
		QCProcess:  r.Bool(FieldConfigQCProcess),
	}

	statusRaw := r.Str(FieldConfigStatusMap)
	fileRaw := r.Str(FieldConfigFileMap)
	if statusRaw == "" || fileRaw == "" {
		return nil, fmt.Errorf("status or file map is empty")
	}

	var statusMaps map[Action]map[Status]Status
	if err := yaml.Unmarshal([]byte(statusRaw), &statusMaps); err != nil {
		return nil, fmt.Errorf("parse status map: %w", err)
	}
	if len(statusMaps) == 0 {
		return nil, fmt.Errorf("status map is empty")
	}

	var rawFiles map[Status]map[string]map[string]any
	if err := yaml.Unmarshal([]byte(fileRaw), &rawFiles); err != nil {
		return nil, fmt.Errorf("parse file map: %w", err)
	}
	if len(rawFiles) == 0 {
		return nil, fmt.Errorf("file map is empty")
	}

	cfg.StatusMaps = statusMaps
	cfg.FileMaps = make(map[Status]map[string]SlotConfig, len(rawFiles))
	for status, slots := range rawFiles {
		parsed := make(map[string]SlotConfig, len(slots))
		for name, raw := range slots {
			slot, err := parseSlot(raw)
			if err != nil {
				return nil, fmt.Errorf("slot %q: %w", name, err)
			}
			parsed[name] = slot
		}
		cfg.FileMaps[status] = parsed
	}
	return cfg, nil
}

// parseSlot decodes one slot entry. Keys outside the reserved set are
// distribution tags naming a destination-template field.
func parseSlot(raw map[string]any) (SlotConfig, error) {
	slot := SlotConfig{Tags: map[string]string{}}
	for key, value := range raw {
		switch key {
		case "type":
			slot.Type, _ = value.(string)
		case "filter":
			slot.Filter, _ = value.(string)
		case "mandatory":
			slot.Mandatory, _ = value.(bool)
		case "workarea":
			slot.Workarea, _ = value.(string)
		case "upload":
			slot.Upload, _ = value.(bool)
		case "ignore":
			items, _ := value.([]any)
			for _, item := range items {
				if s, ok := item.(string); ok {
					slot.Ignore = append(slot.Ignore, s)
				}
			}
		default:
			if field, ok := value.(string); ok && field != "" {
				slot.Tags[key] = field
			}
		}
	}
	switch slot.Type {
	case SlotFile, SlotFiles, SlotFolder:
	default:
		return slot, fmt.Errorf("unsupported slot type %q", slot.Type)
	}
	return slot, nil
}
