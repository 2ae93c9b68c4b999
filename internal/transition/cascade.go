package transition

import (
	"context"

	"github.com/mkawato/shotline/internal/model"
	"github.com/mkawato/shotline/internal/store"
)

// Step names that cascade a status onto the linked tracked entity once the
// task reaches published.
const (
	stepRig         = "Rig"
	stepTexture     = "Texture"
	stepLooknFeel   = "LooknFeel"
	stepRigClientQC = "RigClientQC"
	stepLgtClientQC = "LgtClientQC"
)

// Cascader computes the secondary mutations implied by a successful
// transition: techfix record updates, origin-task reactivation, and
// tracked-entity status rollups. It only reads from the store; all writes
// are returned as batch operations.
type Cascader struct {
	store store.Store
}

func NewCascader(s store.Store) *Cascader {
	return &Cascader{store: s}
}

// TechfixOps updates the techfix record mirroring the task and, when the
// last pending techfix against the origin task settles, advances the origin
// task from hold to techfix-done.
func (c *Cascader) TechfixOps(ctx context.Context, task model.Task, next model.Status) ([]model.BatchOperation, *ItemError) {
	rec, err := c.store.FindOne(ctx, model.EntityTechFixRecord,
		[]store.Filter{{Field: model.FieldTechfixTask, Op: store.OpIs, Value: store.RefValue(task.Ref())}},
		nil)
	if err != nil {
		return nil, Wrap(KindLinkedRecordNotFound, err,
			"Techfix record for task "+task.Name+" was not found")
	}
	tf := model.TechFixFromRecord(rec)

	ops := []model.BatchOperation{
		model.UpdateOp(model.EntityTechFixRecord, tf.ID, map[string]any{
			model.FieldStatus: next,
		}),
	}
	if !model.IsTechfixSettled(next) || tf.FromTask.IsZero() {
		return ops, nil
	}

	origin, err := c.store.FindOne(ctx, model.EntityTask, store.ByID(tf.FromTask.ID), nil)
	if err != nil {
		return nil, Wrap(KindLinkedRecordNotFound, err,
			"Origin task for techfix "+task.Name+" was not found")
	}
	if origin.Status(model.FieldStatus) != model.StatusTechfixHold {
		return ops, nil
	}

	// Pending siblings, not counting the record settled by this item.
	pending, err := c.store.Find(ctx, model.EntityTechFixRecord, []store.Filter{
		{Field: model.FieldTechfixFrom, Op: store.OpIs, Value: store.RefValue(tf.FromTask)},
		{Field: model.FieldID, Op: store.OpIsNot, Value: tf.ID},
		{Field: model.FieldStatus, Op: store.OpNotIn, Value: model.SettledTechfixStatuses()},
	}, nil)
	if err != nil {
		return nil, Wrap(KindStoreUnavailable, err, "Pending techfix lookup failed")
	}
	if len(pending) == 0 {
		ops = append(ops, model.UpdateOp(model.EntityTask, tf.FromTask.ID, map[string]any{
			model.FieldStatus: model.StatusTechfixDone,
		}))
	}
	return ops, nil
}

// EntityOps rolls the tracked entity's status forward when a step that
// gates it reaches published. Only Assets carry cascaded status rules;
// Shots never receive a rollup.
func (c *Cascader) EntityOps(ctx context.Context, task model.Task, entity model.TrackedEntity, next model.Status) ([]model.BatchOperation, *ItemError) {
	if next != model.StatusPublished || entity.Type != model.EntityAsset {
		return nil, nil
	}
	switch task.Step {
	case stepRig:
		return []model.BatchOperation{entityStatusOp(entity, model.StatusReadyForAnim)}, nil
	case stepTexture, stepLooknFeel:
		return []model.BatchOperation{entityStatusOp(entity, model.StatusReadyForLighting)}, nil
	case stepRigClientQC, stepLgtClientQC:
		sibling := stepLgtClientQC
		if task.Step == stepLgtClientQC {
			sibling = stepRigClientQC
		}
		rec, err := c.store.FindOne(ctx, model.EntityTask, []store.Filter{
			{Field: model.FieldTaskLink, Op: store.OpIs, Value: store.RefValue(entity.Ref())},
			{Field: model.FieldTaskStep, Op: store.OpNameIs, Value: sibling},
		}, nil)
		if err != nil {
			return nil, Wrap(KindLinkedRecordNotFound, err,
				"Paired "+sibling+" task for "+entity.Name+" was not found")
		}
		if rec.Status(model.FieldStatus) != model.StatusPublished {
			return nil, nil
		}
		return []model.BatchOperation{entityStatusOp(entity, model.StatusReadyForPublish)}, nil
	}
	return nil, nil
}

func entityStatusOp(entity model.TrackedEntity, s model.Status) model.BatchOperation {
	return model.UpdateOp(entity.Type, entity.ID, map[string]any{
		model.FieldStatus: s,
	})
}
