package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkawato/shotline/internal/model"
)

func TestParse(t *testing.T) {
	raw := "shotline://publish?user_id=24&user_login=jdoe&entity_type=Task" +
		"&project_id=4&project_name=MMCH&ids=5,2&selected_ids=2,5" +
		"&sort_column=created_at&sort_direction=desc" +
		"&cols=sg_status_list&cols=content&column_display_names=Status&column_display_names=Task" +
		"&session_uuid=d8592bd6-fc41-11e1-b2c5-000c297a5f50"

	ctx, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "shotline", ctx.Protocol)
	assert.Equal(t, model.ActionPublish, ctx.Action)
	assert.Equal(t, "Task", ctx.EntityType)
	assert.Equal(t, model.Ref{Type: model.EntityProject, ID: 4, Name: "MMCH"}, ctx.Project)
	assert.Equal(t, []int{5, 2}, ctx.IDs)
	assert.Equal(t, []int{2, 5}, ctx.SelectedIDs)
	require.NotNil(t, ctx.Sort)
	assert.Equal(t, "created_at", ctx.Sort.Column)
	assert.Equal(t, []string{"sg_status_list", "content"}, ctx.Columns)
	assert.Equal(t, []string{"Status", "Task"}, ctx.ColumnNames)
	assert.Equal(t, User{ID: 24, Login: "jdoe"}, ctx.User)
	assert.Equal(t, "d8592bd6-fc41-11e1-b2c5-000c297a5f50", ctx.SessionID.String())
}

func TestParseAttachments(t *testing.T) {
	ctx, err := Parse("shotline://submit?entity_type=Task&selected_ids=9" +
		"&attachment=Maya%20File:/work/scene.ma&attachment=Mov%20File:/work/shot.mov")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Maya File": "/work/scene.ma",
		"Mov File":  "/work/shot.mov",
	}, ctx.Attachments)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no protocol", "publish?entity_type=Task"},
		{"unknown action", "shotline://archive?entity_type=Task"},
		{"missing entity type", "shotline://publish?ids=1"},
		{"bad ids", "shotline://publish?entity_type=Task&selected_ids=2,x"},
		{"bad session uuid", "shotline://publish?entity_type=Task&session_uuid=nope"},
		{"bad attachment", "shotline://submit?entity_type=Task&attachment=noseparator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
		})
	}
}
