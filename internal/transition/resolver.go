package transition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkawato/shotline/internal/model"
	"github.com/mkawato/shotline/internal/store"
)

// Resolver finds and parses the transition configuration applicable to a
// task. All config records for the project are loaded once per run and
// matched in memory; parsed configs are cached so a literal is never parsed
// twice.
type Resolver struct {
	store   store.Store
	logger  *slog.Logger
	records []model.Record
	parsed  map[int]*model.TransitionConfig
}

func NewResolver(s store.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: s, logger: logger, parsed: map[int]*model.TransitionConfig{}}
}

// LoadProject fetches every transition-config record for the project,
// preserving store ordering.
func (r *Resolver) LoadProject(ctx context.Context, project model.Ref) error {
	records, err := r.store.Find(ctx, model.EntityTransitionConfig,
		[]store.Filter{{Field: model.FieldProject, Op: store.OpNameIs, Value: project.Name}},
		nil)
	if err != nil {
		return fmt.Errorf("load transition configs for %s: %w", project.Name, err)
	}
	r.records = records
	r.logger.Debug("transition configs loaded", "project", project.Name, "count", len(records))
	return nil
}

// Resolve returns the parsed config for (entityType, step, taskNameKey).
// When several records match, the last one in store order wins.
func (r *Resolver) Resolve(entityType, step, taskNameKey string) (*model.TransitionConfig, *ItemError) {
	var match model.Record
	for _, rec := range r.records {
		if rec.Str(model.FieldConfigEntityType) == entityType &&
			rec.Str(model.FieldConfigStep) == step &&
			rec.Str(model.FieldConfigTaskName) == taskNameKey {
			match = rec
		}
	}
	if match == nil {
		return nil, Errf(KindConfigMissing,
			"Valid config is not available for %s/%s/%s, please reach out to the tracking team",
			entityType, step, taskNameKey)
	}

	if cfg, ok := r.parsed[match.ID()]; ok {
		return cfg, nil
	}
	cfg, err := model.ParseTransitionConfig(match)
	if err != nil {
		return nil, Wrap(KindConfigEmpty, err,
			fmt.Sprintf("Transition config for %s/%s is empty or unreadable", step, taskNameKey))
	}
	r.parsed[match.ID()] = cfg
	return cfg, nil
}
