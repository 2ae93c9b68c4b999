package transition

import "github.com/mkawato/shotline/internal/model"

// techfixOverrides are merged into the action's status map for techfix
// tasks and for steps without a QC process: those tasks skip the
// intermediate review states and land directly on published.
var techfixOverrides = map[model.Status]model.Status{
	model.StatusLeadApproved: model.StatusPublished,
	model.StatusMovApproved:  model.StatusPublished,
}

// NextStatus computes the status a task moves to under the given action.
// It is a pure function of its inputs; the config's maps are never
// mutated. skipQC selects the techfix/no-QC override merge.
func NextStatus(cfg *model.TransitionConfig, action model.Action, current model.Status, skipQC bool) (model.Status, *ItemError) {
	actionMap := cfg.StatusMaps[action]
	if skipQC {
		merged := make(map[model.Status]model.Status, len(actionMap)+len(techfixOverrides))
		for from, to := range actionMap {
			merged[from] = to
		}
		for from, to := range techfixOverrides {
			merged[from] = to
		}
		actionMap = merged
	}
	next, ok := actionMap[current]
	if !ok {
		return "", Errf(KindStatusInvalid,
			"Task status %q has no %s transition configured", current, action)
	}
	return next, nil
}
