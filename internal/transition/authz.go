package transition

import (
	"slices"

	"github.com/mkawato/shotline/internal/config"
	"github.com/mkawato/shotline/internal/model"
)

// Role sets for the two authorization paths. The lead path is always
// evaluated first; a user matching both is judged as a lead.
var (
	leadRoles       = []string{"Lead", "Team Lead", "Admin", "Manager"}
	supervisorRoles = []string{"Supervisor", "Admin", "Team Lead", "Lead", "Manager"}
)

// CheckRole verifies the acting user holds one of the action's configured
// roles. This runs before the lead/supervisor evaluation and short-circuits
// on failure.
func CheckRole(user model.User, ac config.ActionConfig) *ItemError {
	if slices.Contains(ac.ValidRoles, user.Role) {
		return nil
	}
	return Errf(KindRoleAssignmentInvalid,
		"User role %q is not permitted for this action", user.Role)
}

// Authorize decides whether the user may apply the action to the task. The
// version status checks are skipped when verStatus is empty (no linked
// version, e.g. a first submission).
func Authorize(user model.User, task model.Task, verStatus model.Status, ac config.ActionConfig) *ItemError {
	if slices.Contains(leadRoles, user.Role) && user.ID == task.TeamLeadID {
		if !statusIn(task.Status, ac.ValidLeadStatus) {
			return Errf(KindAuthorizationDenied, "Task status is not valid for the Lead review")
		}
		if verStatus != "" && !statusIn(verStatus, ac.ValidLeadVerStatus) {
			return Errf(KindAuthorizationDenied, "Version status is not valid for the Lead review")
		}
		return nil
	}
	if slices.Contains(supervisorRoles, user.Role) && user.ID == task.SupervisorID {
		if !statusIn(task.Status, ac.ValidSupStatus) {
			return Errf(KindAuthorizationDenied, "Task status is not valid for the Supervisor review")
		}
		if verStatus != "" && !statusIn(verStatus, ac.ValidSupVerStatus) {
			return Errf(KindAuthorizationDenied, "Version status is not valid for the Supervisor review")
		}
		return nil
	}
	return Errf(KindAuthorizationDenied,
		"User is not authorized for this task, check the team lead and supervisor assignment")
}

func statusIn(s model.Status, set []model.Status) bool {
	return slices.Contains(set, s)
}
