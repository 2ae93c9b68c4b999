package model

import "fmt"

// Action is a supported lifecycle transition kind. The set is closed:
// unknown actions are rejected when configuration is loaded, not when a
// transition is dispatched.
type Action string

const (
	ActionSubmit        Action = "submit"
	ActionReviewApprove Action = "review_approve"
	ActionReviewNote    Action = "review_note"
	ActionReviewRetake  Action = "review_retake"
	ActionPublish       Action = "publish"
)

var validActions = map[Action]bool{
	ActionSubmit:        true,
	ActionReviewApprove: true,
	ActionReviewNote:    true,
	ActionReviewRetake:  true,
	ActionPublish:       true,
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !validActions[a] {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// IsReview reports whether the action operates on a Version selection
// rather than a Task selection.
func (a Action) IsReview() bool {
	switch a {
	case ActionReviewApprove, ActionReviewNote, ActionReviewRetake:
		return true
	}
	return false
}
