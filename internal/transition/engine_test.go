package transition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkawato/shotline/internal/config"
	"github.com/mkawato/shotline/internal/model"
	"github.com/mkawato/shotline/internal/pathtmpl"
	"github.com/mkawato/shotline/internal/store"
	"github.com/mkawato/shotline/internal/transfer"
	"github.com/mkawato/shotline/internal/trigger"
)

type engineFixture struct {
	mem     *store.Memory
	engine  *Engine
	work    string
	publish string
	project model.Ref
	user    model.Record
	shot    model.Record
	task    model.Record
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &engineFixture{
		mem:     store.NewMemory(),
		work:    t.TempDir(),
		publish: t.TempDir(),
		project: model.Ref{Type: model.EntityProject, ID: 1, Name: "alpha"},
	}

	cfg := &config.Config{
		Copy: config.CopyConfig{BufferBytes: 1 << 20},
		Actions: map[string]config.ActionConfig{
			"submit": {
				ValidRoles:  []string{"Artist", "Lead"},
				PublishTags: []string{"server"},
			},
			"publish": {
				ValidRoles:         []string{"Lead"},
				ValidLeadStatus:    []model.Status{model.StatusReview},
				ValidLeadVerStatus: []model.Status{model.StatusReview},
				PublishTags:        []string{"server"},
			},
			"review_approve": {
				ValidRoles:         []string{"Lead"},
				ValidLeadStatus:    []model.Status{model.StatusReview},
				ValidLeadVerStatus: []model.Status{model.StatusReview},
			},
		},
	}
	paths := &pathtmpl.Expander{WorkRoot: f.work, PublishRoot: f.publish}
	f.engine = NewEngine(f.mem, cfg, paths, transfer.New(logger), logger)

	f.user = f.mem.Seed(model.EntityHumanUser, model.Record{
		model.FieldUserLogin: "jdoe",
		model.FieldUserRole:  map[string]any{"type": "PermissionRuleSet", "id": 5, "name": "Lead"},
	})
	f.shot = f.mem.Seed(model.EntityShot, model.Record{
		model.FieldCode:    "sh010",
		model.FieldProject: f.project.Map(),
	})
	f.task = f.mem.Seed(model.EntityTask, model.Record{
		model.FieldTaskName:            "Anim",
		model.FieldStatus:              string(model.StatusWIP),
		model.FieldTaskStep:            map[string]any{"type": "Step", "id": 9, "name": "Anim"},
		model.FieldTaskLink:            map[string]any{"type": model.EntityShot, "id": f.shot.ID(), "name": "sh010"},
		model.FieldProject:             f.project.Map(),
		model.FieldTaskTeamLead:        map[string]any{"type": model.EntityHumanUser, "id": f.user.ID()},
		model.FieldTaskInternalVersion: 0,
		model.FieldTaskClientVersion:   2,
	})
	return f
}

const fixtureFileYAML = `rev:
  main:
    type: File
    filter: "Scene (*.ma)"
    mandatory: true
    workarea: sg_work_main
    server: sg_pub_main
`

func (f *engineFixture) seedAnimConfig(statusYAML string) {
	f.mem.Seed(model.EntityTransitionConfig, model.Record{
		model.FieldProject:          f.project.Map(),
		model.FieldConfigEntityType: model.EntityShot,
		model.FieldConfigStep:       "Anim",
		model.FieldConfigTaskName:   "Anim",
		model.FieldConfigQCProcess:  "client",
		model.FieldConfigStatusMap:  statusYAML,
		model.FieldConfigFileMap:    fixtureFileYAML,
		"sg_work_main":              "wa/<ENTITY>_<TASK>_v<VERSION>.<EXT>",
		"sg_pub_main":               "srv/<ENTITY>_<TASK>.<EXT>",
	})
}

func (f *engineFixture) trigger(t *testing.T, action model.Action, attachments map[string]string) *trigger.Context {
	t.Helper()
	ids := []int{f.task.ID()}
	if action.IsReview() {
		ids = nil
	}
	return &trigger.Context{
		Action:      action,
		EntityType:  model.EntityTask,
		Project:     f.project,
		SelectedIDs: ids,
		User:        trigger.User{ID: f.user.ID(), Login: "jdoe"},
		Attachments: attachments,
	}
}

func (f *engineFixture) attachment(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "anim.ma")
	require.NoError(t, os.WriteFile(src, []byte("scene"), 0o644))
	return src
}

func batchedFor(mem *store.Memory, entityType string) []model.BatchOperation {
	var out []model.BatchOperation
	for _, op := range mem.Batched {
		if op.EntityType == entityType {
			out = append(out, op)
		}
	}
	return out
}

// Scenario: submit with a mandatory slot whose source exists. The copy runs
// end to end and the batch carries the status update and the published
// file create.
func TestRunSubmitSuccess(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnimConfig("submit:\n  wip: rev\n")

	report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionSubmit, map[string]string{
		"main": f.attachment(t),
	}))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success)
	assert.Equal(t, "sh010", report.Outcomes[0].Label)
	assert.Equal(t, "Anim", report.Outcomes[0].TaskLabel)

	// Attachment staged into the bumped work-area version, then published.
	assert.FileExists(t, filepath.Join(f.work, "wa", "sh010_Anim_v001.ma"))
	assert.FileExists(t, filepath.Join(f.publish, "srv", "sh010_Anim.ma"))

	taskOps := batchedFor(f.mem, model.EntityTask)
	require.Len(t, taskOps, 1)
	assert.Equal(t, model.StatusReview, taskOps[0].Data[model.FieldStatus])
	assert.Equal(t, 1, taskOps[0].Data[model.FieldTaskInternalVersion])

	pubOps := batchedFor(f.mem, model.EntityPublishedFile)
	require.Len(t, pubOps, 1)
	assert.Equal(t, "sh010_Anim_v002", pubOps[0].Data[model.FieldCode])
	assert.Equal(t, 2, pubOps[0].Data[model.FieldPublishVersionNum])

	require.Len(t, batchedFor(f.mem, model.EntityVersion), 1)
}

// Scenario: same config, mandatory slot source missing. The item fails,
// names the slot, and queues nothing.
func TestRunSubmitMandatorySlotMissing(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnimConfig("submit:\n  wip: rev\n")

	report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionSubmit, nil))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.False(t, report.Outcomes[0].Success)
	assert.Contains(t, report.Outcomes[0].Reason, "main")
	assert.Empty(t, f.mem.Batched)
}

// A techfix submit ships the record's status mirror in the same batch as
// the task update, and pushes the bumped version to the origin task.
func TestRunSubmitTechfixMirrorsRecord(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnimConfig("submit:\n  wip: rev\n")
	techfix := f.mem.Seed(model.EntityTask, model.Record{
		model.FieldTaskName:            "Anim_TechFix",
		model.FieldStatus:              string(model.StatusWIP),
		model.FieldTaskStep:            map[string]any{"type": "Step", "id": 9, "name": "Anim"},
		model.FieldTaskLink:            map[string]any{"type": model.EntityShot, "id": f.shot.ID(), "name": "sh010"},
		model.FieldProject:             f.project.Map(),
		model.FieldTaskTeamLead:        map[string]any{"type": model.EntityHumanUser, "id": f.user.ID()},
		model.FieldTaskInternalVersion: 3,
	})
	record := f.mem.Seed(model.EntityTechFixRecord, model.Record{
		model.FieldStatus:      string(model.StatusTechfixHold),
		model.FieldTechfixTask: map[string]any{"type": model.EntityTask, "id": techfix.ID(), "name": "Anim_TechFix"},
		model.FieldTechfixFrom: map[string]any{"type": model.EntityTask, "id": f.task.ID(), "name": "Anim"},
	})

	trig := f.trigger(t, model.ActionSubmit, map[string]string{"main": f.attachment(t)})
	trig.SelectedIDs = []int{techfix.ID()}

	report, err := f.engine.Run(context.Background(), trig)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success, report.Outcomes[0].Reason)

	recordOps := batchedFor(f.mem, model.EntityTechFixRecord)
	require.Len(t, recordOps, 1)
	assert.Equal(t, record.ID(), recordOps[0].EntityID)
	assert.Equal(t, model.StatusReview, recordOps[0].Data[model.FieldStatus])

	// Both the techfix task and its origin carry the bumped version.
	taskOps := batchedFor(f.mem, model.EntityTask)
	require.Len(t, taskOps, 2)
	assert.Equal(t, techfix.ID(), taskOps[0].EntityID)
	assert.Equal(t, model.StatusReview, taskOps[0].Data[model.FieldStatus])
	assert.Equal(t, 4, taskOps[0].Data[model.FieldTaskInternalVersion])
	assert.Equal(t, f.task.ID(), taskOps[1].EntityID)
	assert.Equal(t, 4, taskOps[1].Data[model.FieldTaskInternalVersion])
}

// A failed item leaves the other items of the same run untouched.
func TestRunItemIsolation(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnimConfig("submit:\n  wip: rev\n")
	broken := f.mem.Seed(model.EntityTask, model.Record{
		model.FieldTaskName: "Light",
		model.FieldStatus:   string(model.StatusWIP),
		model.FieldTaskStep: map[string]any{"type": "Step", "id": 10, "name": "Lighting"},
		model.FieldTaskLink: map[string]any{"type": model.EntityShot, "id": f.shot.ID(), "name": "sh010"},
		model.FieldProject:  f.project.Map(),
	})

	trig := f.trigger(t, model.ActionSubmit, map[string]string{"main": f.attachment(t)})
	trig.SelectedIDs = []int{f.task.ID(), broken.ID()}

	report, err := f.engine.Run(context.Background(), trig)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.True(t, report.Outcomes[0].Success)
	assert.False(t, report.Outcomes[1].Success)
	assert.Contains(t, report.Outcomes[1].Reason, "tracking team")

	// Only the first item's mutations were committed.
	require.Len(t, batchedFor(f.mem, model.EntityTask), 1)
	assert.Equal(t, f.task.ID(), batchedFor(f.mem, model.EntityTask)[0].EntityID)
}

func TestRunConfigMissing(t *testing.T) {
	f := newEngineFixture(t)

	report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionSubmit, nil))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.False(t, report.Outcomes[0].Success)
	assert.Contains(t, report.Outcomes[0].Reason, "tracking team")
	assert.Empty(t, f.mem.Batched)
}

// / Config and status resolution run before authorization, so when both
// would fail the resolution reason is the one reported.
func TestRunPublishResolvesBeforeAuthorizing(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		f := newEngineFixture(t)
		// No config seeded; the wip status would also fail the lead rules.
		report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionPublish, nil))
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.False(t, report.Outcomes[0].Success)
		assert.Contains(t, report.Outcomes[0].Reason, "tracking team")
	})

	t.Run("unmapped status", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedAnimConfig("publish:\n  tlapr: pub\n")

		report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionPublish, nil))
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.False(t, report.Outcomes[0].Success)
		assert.Contains(t, report.Outcomes[0].Reason, "no publish transition")
	})
}

// Scenario: the acting user is the team lead but the task status fails the
// lead rules.
func TestRunPublishLeadStatusDenied(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnimConfig("publish:\n  wip: pub\n")

	report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionPublish, nil))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.False(t, report.Outcomes[0].Success)
	assert.Equal(t, "Task status is not valid for the Lead review", report.Outcomes[0].Reason)
	assert.Empty(t, f.mem.Batched)
}

func TestRunPublishSuccessWithCascade(t *testing.T) {
	f := newEngineFixture(t)
	asset := f.mem.Seed(model.EntityAsset, model.Record{
		model.FieldCode:    "chair",
		model.FieldProject: f.project.Map(),
	})
	require.NoError(t, f.mem.Update(context.Background(), model.EntityTask, f.task.ID(), map[string]any{
		model.FieldStatus:              string(model.StatusReview),
		model.FieldTaskStep:            map[string]any{"type": "Step", "id": 11, "name": "Rig"},
		model.FieldTaskLink:            map[string]any{"type": model.EntityAsset, "id": asset.ID(), "name": "chair"},
		model.FieldTaskInternalVersion: 1,
	}))
	f.mem.Seed(model.EntityTransitionConfig, model.Record{
		model.FieldProject:          f.project.Map(),
		model.FieldConfigEntityType: model.EntityAsset,
		model.FieldConfigStep:       "Rig",
		model.FieldConfigTaskName:   "Anim",
		model.FieldConfigQCProcess:  "client",
		model.FieldConfigStatusMap:  "publish:\n  rev: pub\n",
		model.FieldConfigFileMap:    "pub:\n  main:\n    type: File\n    filter: \"Scene (*.ma)\"\n    mandatory: true\n    workarea: sg_work_main\n    server: sg_pub_main\n",
		"sg_work_main":              "wa/<ENTITY>_<TASK>_v<VERSION>.<EXT>",
		"sg_pub_main":               "srv/<ENTITY>_<TASK>.<EXT>",
	})
	source := filepath.Join(f.work, "wa", "chair_Anim_v001.ma")
	require.NoError(t, os.MkdirAll(filepath.Dir(source), 0o755))
	require.NoError(t, os.WriteFile(source, []byte("scene"), 0o644))

	report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionPublish, nil))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success, report.Outcomes[0].Reason)

	taskOps := batchedFor(f.mem, model.EntityTask)
	require.Len(t, taskOps, 1)
	assert.Equal(t, model.StatusPublished, taskOps[0].Data[model.FieldStatus])

	// Rig completion rolls the linked asset forward.
	assetOps := batchedFor(f.mem, model.EntityAsset)
	require.Len(t, assetOps, 1)
	assert.Equal(t, model.StatusReadyForAnim, assetOps[0].Data[model.FieldStatus])

	require.Len(t, batchedFor(f.mem, model.EntityPublishedFile), 1)
}

func TestRunClientQCExemption(t *testing.T) {
	f := newEngineFixture(t)
	// Status "wip" has no publish mapping; the step's exemption lets the
	// item pass with nothing queued.
	f.seedAnimConfig("publish:\n  tlapr: pub\n")
	require.NoError(t, f.mem.Update(context.Background(), model.EntityTask, f.task.ID(), map[string]any{
		model.FieldStatus: string(model.StatusReview),
	}))
	f.engine.cfg.Actions["publish"] = config.ActionConfig{
		ValidRoles:      []string{"Lead"},
		ValidLeadStatus: []model.Status{model.StatusReview},
		ClientQCSteps:   []string{"Anim"},
	}

	report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionPublish, nil))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success, report.Outcomes[0].Reason)
	assert.Empty(t, f.mem.Batched)
}

func TestRunFatalCollapsesReport(t *testing.T) {
	f := newEngineFixture(t)

	trig := f.trigger(t, model.ActionSubmit, nil)
	trig.User.ID = 9999 // unknown acting user

	report, err := f.engine.Run(context.Background(), trig)
	require.Error(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.False(t, report.Outcomes[0].Success)
	assert.Contains(t, report.Outcomes[0].Reason, "9999")
}

func TestRunCancelled(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnimConfig("submit:\n  wip: rev\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Run(ctx, f.trigger(t, model.ActionSubmit, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunBatchFailureSurfaces(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnimConfig("submit:\n  wip: rev\n")
	f.mem.FailBatch = errors.New("store exploded")

	report, err := f.engine.Run(context.Background(), f.trigger(t, model.ActionSubmit, map[string]string{
		"main": f.attachment(t),
	}))
	require.Error(t, err)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
	// The per-item rows are preserved alongside the commit failure.
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success)
}

func TestRunReviewApprove(t *testing.T) {
	f := newEngineFixture(t)
	f.seedAnimConfig("review_approve:\n  rev: tlapr\n")
	require.NoError(t, f.mem.Update(context.Background(), model.EntityTask, f.task.ID(), map[string]any{
		model.FieldStatus: string(model.StatusReview),
	}))
	version := f.mem.Seed(model.EntityVersion, model.Record{
		model.FieldCode:        "sh010_Anim_v001",
		model.FieldStatus:      string(model.StatusReview),
		model.FieldVersionTask: map[string]any{"type": model.EntityTask, "id": f.task.ID(), "name": "Anim"},
		model.FieldVersionLink: map[string]any{"type": model.EntityShot, "id": f.shot.ID(), "name": "sh010"},
	})

	trig := f.trigger(t, model.ActionReviewApprove, nil)
	trig.EntityType = model.EntityVersion
	trig.SelectedIDs = []int{version.ID()}

	report, err := f.engine.Run(context.Background(), trig)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success, report.Outcomes[0].Reason)
	assert.Equal(t, "sh010_Anim_v001", report.Outcomes[0].Label)

	taskOps := batchedFor(f.mem, model.EntityTask)
	require.Len(t, taskOps, 1)
	assert.Equal(t, model.StatusLeadApproved, taskOps[0].Data[model.FieldStatus])

	verOps := batchedFor(f.mem, model.EntityVersion)
	require.Len(t, verOps, 1)
	assert.Equal(t, version.ID(), verOps[0].EntityID)
	assert.Equal(t, model.StatusLeadApproved, verOps[0].Data[model.FieldStatus])
}
