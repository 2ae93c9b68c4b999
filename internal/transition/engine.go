package transition

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mkawato/shotline/internal/config"
	"github.com/mkawato/shotline/internal/model"
	"github.com/mkawato/shotline/internal/pathtmpl"
	"github.com/mkawato/shotline/internal/publish"
	"github.com/mkawato/shotline/internal/store"
	"github.com/mkawato/shotline/internal/transfer"
	"github.com/mkawato/shotline/internal/trigger"
)

// Engine drives one transition run: it resolves configuration per item,
// authorizes the acting user, computes the next status, executes file side
// effects, and commits all record mutations in a single batch at the end.
type Engine struct {
	store  store.Store
	cfg    *config.Config
	paths  pathtmpl.Service
	copier publish.Copier
	logger *slog.Logger
}

func NewEngine(s store.Store, cfg *config.Config, paths pathtmpl.Service, copier publish.Copier, logger *slog.Logger) *Engine {
	return &Engine{store: s, cfg: cfg, paths: paths, copier: copier, logger: logger}
}

// run carries the per-run state shared by the item handlers.
type run struct {
	*Engine
	trig     *trigger.Context
	action   config.ActionConfig
	user     model.User
	resolver *Resolver
	cascader *Cascader
	pub      *publish.Orchestrator
	batch    *BatchBuilder
}

type itemHandler func(ctx context.Context, r *run, rec model.Record) (string, error)

// handlers is the closed dispatch table; trigger parsing already rejected
// anything outside it.
var handlers = map[model.Action]itemHandler{
	model.ActionSubmit:        submitItem,
	model.ActionPublish:       publishItem,
	model.ActionReviewApprove: reviewItem,
	model.ActionReviewNote:    reviewItem,
	model.ActionReviewRetake:  reviewItem,
}

// Run processes every selected item sequentially and flushes the
// accumulated batch once. Per-item failures become failed report rows; a
// fatal error collapses the report to a single row and is also returned.
func (e *Engine) Run(ctx context.Context, trig *trigger.Context) (Report, error) {
	report := Report{}

	r, items, err := e.prepare(ctx, trig)
	if err != nil {
		return Fatal(err), err
	}

	handler := handlers[trig.Action]
	for _, rec := range items {
		// A long batch can be aborted between items without losing the
		// rows already produced.
		if err := ctx.Err(); err != nil {
			return report, err
		}

		label := itemLabel(trig.Action, rec)
		taskLabel, err := handler(ctx, r, rec)
		if err == nil {
			report.Succeeded(label, taskLabel)
			continue
		}
		if KindOf(err) == KindFatal {
			e.logger.Error("run aborted", "item", label, "error", err)
			return Fatal(err), err
		}
		e.logger.Warn("item failed", "item", label, "kind", KindOf(err), "error", err)
		report.Failed(label, taskLabel, err.Error())
	}

	if err := r.batch.Flush(ctx, e.store); err != nil {
		return report, err
	}
	return report, nil
}

func (e *Engine) prepare(ctx context.Context, trig *trigger.Context) (*run, []model.Record, error) {
	ac, err := e.cfg.Action(trig.Action)
	if err != nil {
		return nil, nil, err
	}

	userRec, err := e.store.FindOne(ctx, model.EntityHumanUser, store.ByID(trig.User.ID), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("look up acting user %d: %w", trig.User.ID, err)
	}

	r := &run{
		Engine:   e,
		trig:     trig,
		action:   ac,
		user:     model.UserFromRecord(userRec),
		resolver: NewResolver(e.store, e.logger),
		cascader: NewCascader(e.store),
		pub:      publish.NewOrchestrator(e.store, e.paths, e.copier, e.logger, e.cfg.Copy.BufferBytes),
		batch:    &BatchBuilder{},
	}
	if err := r.resolver.LoadProject(ctx, trig.Project); err != nil {
		return nil, nil, err
	}

	entityType := model.EntityTask
	if trig.Action.IsReview() {
		entityType = model.EntityVersion
	}
	filters := trig.SelectedFilter()
	if len(trig.SelectedIDs) == 0 {
		// A trigger without a selection acts on the full id set.
		filters = []store.Filter{{Field: model.FieldID, Op: store.OpIn, Value: trig.IDs}}
	}
	items, err := e.store.Find(ctx, entityType, filters, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load selected %s records: %w", entityType, err)
	}
	return r, items, nil
}

func itemLabel(action model.Action, rec model.Record) string {
	if action.IsReview() {
		return rec.Str(model.FieldCode)
	}
	if link := rec.Ref(model.FieldTaskLink); link.Name != "" {
		return link.Name
	}
	return rec.Str(model.FieldTaskName)
}

// resolveNext computes the item's target status, honouring the client-QC
// exemption: for listed steps an unmapped current status is tolerated and
// the item proceeds with no status mutation or file enforcement.
func (r *run) resolveNext(task model.Task, cfg *model.TransitionConfig) (model.Status, bool, *ItemError) {
	skipQC := task.IsTechfix() || !cfg.QCProcess
	next, ierr := NextStatus(cfg, r.trig.Action, task.Status, skipQC)
	if ierr != nil {
		if ierr.Kind == KindStatusInvalid && slices.Contains(r.action.ClientQCSteps, task.Step) {
			return "", true, nil
		}
		return "", false, ierr
	}
	return next, false, nil
}

func (r *run) resolveConfig(task model.Task) (*model.TransitionConfig, bool, *ItemError) {
	cfg, ierr := r.resolver.Resolve(task.Link.Type, task.Step, task.ConfigKey())
	if ierr != nil {
		if ierr.Kind == KindConfigEmpty && slices.Contains(r.action.ClientQCSteps, task.Step) {
			return nil, true, nil
		}
		return nil, false, ierr
	}
	return cfg, false, nil
}

func (r *run) linkedEntity(ctx context.Context, task model.Task) (model.TrackedEntity, *ItemError) {
	if task.Link.IsZero() {
		return model.TrackedEntity{}, Errf(KindLinkedRecordNotFound,
			"Task %s has no linked entity", task.Name)
	}
	rec, err := r.store.FindOne(ctx, task.Link.Type, store.ByID(task.Link.ID), nil)
	if err != nil {
		return model.TrackedEntity{}, Wrap(KindLinkedRecordNotFound, err,
			"Linked "+task.Link.Type+" for task "+task.Name+" was not found")
	}
	return model.EntityFromRecord(rec), nil
}

// publishItem runs the full transition for one selected task: resolve the
// config and the next status, authorize, execute file side effects, then
// queue the task update and every cascade.
func publishItem(ctx context.Context, r *run, rec model.Record) (string, error) {
	task := model.TaskFromRecord(rec)

	cfg, exempt, ierr := r.resolveConfig(task)
	if ierr != nil {
		return task.Name, ierr
	}
	var next model.Status
	if !exempt {
		if next, exempt, ierr = r.resolveNext(task, cfg); ierr != nil {
			return task.Name, ierr
		}
	}

	if ierr := CheckRole(r.user, r.action); ierr != nil {
		return task.Name, ierr
	}
	verStatus, ierr := r.latestVersionStatus(ctx, task)
	if ierr != nil {
		return task.Name, ierr
	}
	if ierr := Authorize(r.user, task, verStatus, r.action); ierr != nil {
		return task.Name, ierr
	}
	if exempt {
		return task.Name, nil
	}

	entity, ierr := r.linkedEntity(ctx, task)
	if ierr != nil {
		return task.Name, ierr
	}

	res, err := r.pub.Run(ctx, cfg, task, entity, next, r.action.PublishTags, r.action.Ignores)
	if err != nil {
		return task.Name, fmt.Errorf("publish %s: %w", task.Name, err)
	}
	if !res.OK {
		if len(res.Missing) > 0 {
			return task.Name, Errf(KindFileMissingMandatory,
				"Mandatory files are missing for slot(s) %s", strings.Join(res.Missing, ", "))
		}
		return task.Name, Errf(KindCopyFailure,
			"Copy failed: %s", strings.Join(res.Failures, "; "))
	}

	ops := append([]model.BatchOperation{}, res.Ops...)
	ops = append(ops, model.UpdateOp(model.EntityTask, task.ID, map[string]any{
		model.FieldStatus: next,
	}))
	if task.IsTechfix() {
		tfOps, ierr := r.cascader.TechfixOps(ctx, task, next)
		if ierr != nil {
			return task.Name, ierr
		}
		ops = append(ops, tfOps...)
	}
	entOps, ierr := r.cascader.EntityOps(ctx, task, entity, next)
	if ierr != nil {
		return task.Name, ierr
	}
	ops = append(ops, entOps...)

	r.batch.Add(ops...)
	return task.Name, nil
}

// submitItem copies the user's attachments into the work area at a bumped
// internal version, then queues the Version create, the task update, and
// the techfix version propagation.
func submitItem(ctx context.Context, r *run, rec model.Record) (string, error) {
	task := model.TaskFromRecord(rec)

	if ierr := CheckRole(r.user, r.action); ierr != nil {
		return task.Name, ierr
	}

	cfg, exempt, ierr := r.resolveConfig(task)
	if ierr != nil {
		return task.Name, ierr
	}
	var next model.Status
	if !exempt {
		if next, exempt, ierr = r.resolveNext(task, cfg); ierr != nil {
			return task.Name, ierr
		}
	}

	entity, ierr := r.linkedEntity(ctx, task)
	if ierr != nil {
		return task.Name, ierr
	}

	// Copies land in the next internal version so published files from the
	// previous pass are never overwritten.
	bumped := task
	bumped.InternalVersion = task.InternalVersion + 1

	var pubOps []model.BatchOperation
	if !exempt {
		if ierr := r.copyAttachments(ctx, cfg, bumped, entity, next); ierr != nil {
			return task.Name, ierr
		}
		res, err := r.pub.Run(ctx, cfg, bumped, entity, next, r.action.PublishTags, r.action.Ignores)
		if err != nil {
			return task.Name, fmt.Errorf("publish %s: %w", task.Name, err)
		}
		if !res.OK {
			if len(res.Missing) > 0 {
				return task.Name, Errf(KindFileMissingMandatory,
					"Mandatory files are missing for slot(s) %s", strings.Join(res.Missing, ", "))
			}
			return task.Name, Errf(KindCopyFailure,
				"Copy failed: %s", strings.Join(res.Failures, "; "))
		}
		pubOps = res.Ops
	}

	data := map[string]any{
		model.FieldTaskInternalVersion: bumped.InternalVersion,
	}
	if !exempt {
		data[model.FieldStatus] = next
	}
	r.batch.Add(pubOps...)
	r.batch.Add(
		model.CreateOp(model.EntityVersion, map[string]any{
			model.FieldProject:     task.Project.Map(),
			model.FieldCode:        fmt.Sprintf("%s_%s_v%03d", entity.Name, task.Name, bumped.InternalVersion),
			model.FieldStatus:      model.StatusReview,
			model.FieldVersionLink: entity.Ref().Map(),
			model.FieldVersionTask: task.Ref().Map(),
		}),
		model.UpdateOp(model.EntityTask, task.ID, data),
	)

	if task.IsTechfix() {
		if ierr := r.propagateVersion(ctx, task, entity, bumped.InternalVersion, next); ierr != nil {
			return task.Name, ierr
		}
	}
	return task.Name, nil
}

// copyAttachments validates the submission's slots and copies each selected
// source into its work-area destination.
func (r *run) copyAttachments(ctx context.Context, cfg *model.TransitionConfig, task model.Task, entity model.TrackedEntity, next model.Status) *ItemError {
	slots := publish.SlotsFor(cfg, task.Step, next)
	var missing []string
	for name, slot := range slots {
		if _, ok := r.trig.Attachments[name]; !ok && slot.Mandatory {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return Errf(KindFileMissingMandatory,
			"Mandatory files are missing for slot(s) %s", strings.Join(missing, ", "))
	}

	for name, slot := range slots {
		source, ok := r.trig.Attachments[name]
		if !ok {
			continue
		}
		dest, err := r.paths.Build(ctx, cfg.Template(slot.Workarea), publish.ExtensionOf(slot.Filter), task, entity, false)
		if err != nil {
			return Wrap(KindCopyFailure, err, "Work-area path for slot "+name+" could not be resolved")
		}
		if err := r.copier.Copy(ctx, source, dest, copyOptions(slot, r.action, r.cfg)); err != nil {
			return Wrap(KindCopyFailure, err, "Copy failed for slot "+name)
		}
	}
	return nil
}

// propagateVersion mirrors the techfix task's new status onto its techfix
// record and pushes the new internal version to the origin task and to
// every still-fresh task of the same step and entity. The record mirror is
// part of the task's commit: the Task status update never ships without it.
func (r *run) propagateVersion(ctx context.Context, task model.Task, entity model.TrackedEntity, version int, next model.Status) *ItemError {
	rec, err := r.store.FindOne(ctx, model.EntityTechFixRecord,
		[]store.Filter{{Field: model.FieldTechfixTask, Op: store.OpIs, Value: store.RefValue(task.Ref())}},
		nil)
	if err != nil {
		return Wrap(KindLinkedRecordNotFound, err,
			"Techfix record for task "+task.Name+" was not found")
	}
	tf := model.TechFixFromRecord(rec)
	if next != "" {
		r.batch.Add(model.UpdateOp(model.EntityTechFixRecord, tf.ID, map[string]any{
			model.FieldStatus: next,
		}))
	}
	bump := map[string]any{model.FieldTaskInternalVersion: version}
	if !tf.FromTask.IsZero() {
		r.batch.Add(model.UpdateOp(model.EntityTask, tf.FromTask.ID, bump))
	}

	fresh, err := r.store.Find(ctx, model.EntityTask, []store.Filter{
		{Field: model.FieldTaskLink, Op: store.OpIs, Value: store.RefValue(entity.Ref())},
		{Field: model.FieldTaskStep, Op: store.OpNameIs, Value: task.Step},
		{Field: model.FieldStatus, Op: store.OpIs, Value: model.StatusFresh},
	}, nil)
	if err != nil {
		return Wrap(KindStoreUnavailable, err, "Fresh task lookup failed")
	}
	for _, f := range fresh {
		if f.ID() == task.ID {
			continue
		}
		r.batch.Add(model.UpdateOp(model.EntityTask, f.ID(), bump))
	}
	return nil
}

// reviewItem applies a review action to one selected Version: authorize
// against both task and version state, then queue the paired status
// updates.
func reviewItem(ctx context.Context, r *run, rec model.Record) (string, error) {
	version := model.VersionFromRecord(rec)
	if version.Task.IsZero() {
		return "", Errf(KindLinkedRecordNotFound, "Version %s has no linked task", version.Name)
	}
	taskRec, err := r.store.FindOne(ctx, model.EntityTask, store.ByID(version.Task.ID), nil)
	if err != nil {
		return version.Task.Name, Wrap(KindLinkedRecordNotFound, err,
			"Task for version "+version.Name+" was not found")
	}
	task := model.TaskFromRecord(taskRec)

	if ierr := CheckRole(r.user, r.action); ierr != nil {
		return task.Name, ierr
	}
	if ierr := Authorize(r.user, task, version.Status, r.action); ierr != nil {
		return task.Name, ierr
	}

	cfg, exempt, ierr := r.resolveConfig(task)
	if ierr != nil {
		return task.Name, ierr
	}
	if exempt {
		return task.Name, nil
	}
	next, exempt, ierr := r.resolveNext(task, cfg)
	if ierr != nil {
		return task.Name, ierr
	}
	if exempt {
		return task.Name, nil
	}

	r.batch.Add(
		model.UpdateOp(model.EntityTask, task.ID, map[string]any{model.FieldStatus: next}),
		model.UpdateOp(model.EntityVersion, version.ID, map[string]any{model.FieldStatus: next}),
	)
	if task.IsTechfix() {
		tfOps, ierr := r.cascader.TechfixOps(ctx, task, next)
		if ierr != nil {
			return task.Name, ierr
		}
		r.batch.Add(tfOps...)
	}
	return task.Name, nil
}

// latestVersionStatus returns the status of the task's most recently
// created version, or "" when the task has none yet.
func (r *run) latestVersionStatus(ctx context.Context, task model.Task) (model.Status, *ItemError) {
	versions, err := r.store.Find(ctx, model.EntityVersion,
		[]store.Filter{{Field: model.FieldVersionTask, Op: store.OpIs, Value: store.RefValue(task.Ref())}},
		nil, store.Order{Field: "created_at", Direction: store.Asc})
	if err != nil {
		return "", Wrap(KindStoreUnavailable, err, "Version lookup failed for task "+task.Name)
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[len(versions)-1].Status(model.FieldStatus), nil
}

func copyOptions(slot model.SlotConfig, ac config.ActionConfig, cfg *config.Config) transfer.Options {
	return transfer.Options{
		IgnorePatterns: append(append([]string{}, slot.Ignore...), ac.Ignores...),
		Overwrite:      true,
		BufferSize:     cfg.Copy.BufferBytes,
	}
}
