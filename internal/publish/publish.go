// Package publish executes the file side effects of a transition: per-slot
// source resolution, copies to every distribution target, and synthesis of
// the published-file records queued into the run's batch.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mkawato/shotline/internal/model"
	"github.com/mkawato/shotline/internal/pathtmpl"
	"github.com/mkawato/shotline/internal/store"
	"github.com/mkawato/shotline/internal/transfer"
)

// Copier is the file-transfer service the orchestrator drives.
type Copier interface {
	Copy(ctx context.Context, src, dst string, opts transfer.Options) error
}

// Result aggregates one item's publish outcome. OK is the AND across every
// slot/tag copy; Ops holds the published-file creates to queue only when OK.
type Result struct {
	OK       bool
	Ops      []model.BatchOperation
	Missing  []string // mandatory slots whose source was absent
	Failures []string // copy failure messages
}

// Orchestrator resolves slot paths and runs the copies for one item.
type Orchestrator struct {
	store      store.Store
	paths      pathtmpl.Service
	copier     Copier
	logger     *slog.Logger
	bufferSize int
}

func NewOrchestrator(s store.Store, paths pathtmpl.Service, copier Copier, logger *slog.Logger, bufferSize int) *Orchestrator {
	return &Orchestrator{store: s, paths: paths, copier: copier, logger: logger, bufferSize: bufferSize}
}

// ExtensionOf extracts the single extension of a slot filter, e.g.
// "Maya scene (*.ma)" -> ["ma"]. Multi-pattern filters are not supported;
// the first token wins.
func ExtensionOf(filter string) []string {
	m := filterExt.FindStringSubmatch(filter)
	if m == nil {
		return nil
	}
	return []string{m[1]}
}

var filterExt = regexp.MustCompile(`\*\.(\w+)`)

// SlotsFor selects the slot set for the target status. A direct miss falls
// back to the movie-complete set for Lighting steps, then to the generic
// complete set.
func SlotsFor(cfg *model.TransitionConfig, step string, next model.Status) map[string]model.SlotConfig {
	if slots, ok := cfg.FileMaps[next]; ok {
		return slots
	}
	if step == "Lighting" {
		if slots, ok := cfg.FileMaps[model.StatusMovComplete]; ok {
			return slots
		}
		if slots, ok := cfg.FileMaps[model.StatusShotFixComplete]; ok {
			return slots
		}
	}
	return cfg.FileMaps[model.StatusComplete]
}

// Run executes every required copy for the item and returns the aggregate
// result. Copies already performed are not undone when a later slot fails.
func (o *Orchestrator) Run(ctx context.Context, cfg *model.TransitionConfig, task model.Task, entity model.TrackedEntity, next model.Status, publishTags, ignores []string) (Result, error) {
	res := Result{OK: true}
	slots := SlotsFor(cfg, task.Step, next)
	if len(slots) == 0 {
		return res, nil
	}

	for _, name := range sortedNames(slots) {
		slot := slots[name]
		exts := ExtensionOf(slot.Filter)

		source, err := o.paths.Build(ctx, cfg.Template(slot.Workarea), exts, task, entity, false)
		if err != nil {
			return res, fmt.Errorf("slot %s: resolve source: %w", name, err)
		}
		if _, err := os.Stat(source); err != nil {
			if slot.Mandatory {
				res.OK = false
				res.Missing = append(res.Missing, name)
			} else {
				o.logger.Debug("optional slot skipped", "slot", name, "source", source)
			}
			continue
		}

		for _, tag := range publishTags {
			field, ok := slot.Tags[tag]
			if !ok {
				continue
			}
			dest, err := o.paths.Build(ctx, cfg.Template(field), exts, task, entity, true)
			if err != nil {
				return res, fmt.Errorf("slot %s tag %s: resolve destination: %w", name, tag, err)
			}
			dest = adjustDestination(dest, task, entity, tag)

			opts := transfer.Options{
				Overwrite:      true,
				BufferSize:     o.bufferSize,
				IgnorePatterns: append(append([]string{}, slot.Ignore...), ignores...),
			}
			if err := o.copier.Copy(ctx, source, dest, opts); err != nil {
				res.OK = false
				res.Failures = append(res.Failures, fmt.Sprintf("%s -> %s: %v", name, tag, err))
				continue
			}

			op, err := o.publishedFileOp(ctx, task, entity, name, dest)
			if err != nil {
				return res, fmt.Errorf("slot %s: published file: %w", name, err)
			}
			res.Ops = append(res.Ops, op)
		}
	}
	return res, nil
}

// adjustDestination applies the one documented path-shape exception: props
// texture publishes to the server land next to the asset root, not under
// its work area.
func adjustDestination(dest string, task model.Task, entity model.TrackedEntity, tag string) string {
	if tag == "server" && task.Step == "Texture" && strings.EqualFold(entity.AssetType, "props") {
		dest = stripSegments(dest, "workarea", "texture")
	}
	return dest
}

func stripSegments(path string, drop ...string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	kept := parts[:0]
	for _, p := range parts {
		skip := false
		for _, d := range drop {
			if p == d {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, p)
		}
	}
	return filepath.FromSlash(strings.Join(kept, "/"))
}

// publishedFileOp synthesizes the PublishedFile create for one successful
// copy. The linked Version is the most recently created client-approved one
// for the same entity and task, when any exists.
func (o *Orchestrator) publishedFileOp(ctx context.Context, task model.Task, entity model.TrackedEntity, slotName, dest string) (model.BatchOperation, error) {
	data := map[string]any{
		model.FieldProject:             task.Project.Map(),
		model.FieldPublishName:         slotName,
		model.FieldCode:                fmt.Sprintf("%s_%s_v%03d", entity.Name, task.Step, task.ClientVersion),
		model.FieldStatus:              model.StatusComplete,
		model.FieldPublishVersionNum:   task.ClientVersion,
		model.FieldPublishEntity:       entity.Ref().Map(),
		model.FieldPublishTask:         task.Ref().Map(),
		model.FieldPublishAbsolutePath: dest,
	}

	if ref, ok, err := o.publishedFileType(ctx, slotName); err != nil {
		return model.BatchOperation{}, err
	} else if ok {
		data[model.FieldPublishType] = ref.Map()
	}

	versions, err := o.store.Find(ctx, model.EntityVersion, []store.Filter{
		{Field: model.FieldVersionLink, Op: store.OpIs, Value: store.RefValue(entity.Ref())},
		{Field: model.FieldVersionTask, Op: store.OpIs, Value: store.RefValue(task.Ref())},
		{Field: model.FieldStatus, Op: store.OpIs, Value: model.StatusQCApproved},
	}, nil, store.Order{Field: "created_at", Direction: store.Asc})
	if err != nil {
		return model.BatchOperation{}, fmt.Errorf("find client-approved versions: %w", err)
	}
	if len(versions) > 0 {
		latest := versions[len(versions)-1]
		data[model.FieldPublishVersion] = model.Ref{
			Type: model.EntityVersion,
			ID:   latest.ID(),
			Name: latest.Str(model.FieldCode),
		}.Map()
	}

	return model.CreateOp(model.EntityPublishedFile, data), nil
}

func (o *Orchestrator) publishedFileType(ctx context.Context, slotName string) (model.Ref, bool, error) {
	rec, err := o.store.FindOne(ctx, model.EntityPublishedFileType,
		[]store.Filter{{Field: model.FieldCode, Op: store.OpIs, Value: slotName}}, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Ref{}, false, nil
		}
		return model.Ref{}, false, fmt.Errorf("find published file type %q: %w", slotName, err)
	}
	return model.Ref{Type: model.EntityPublishedFileType, ID: rec.ID(), Name: rec.Str(model.FieldCode)}, true, nil
}

func sortedNames(slots map[string]model.SlotConfig) []string {
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
