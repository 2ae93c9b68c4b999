// Package model defines the records, statuses, and batch operation types
// shared across the transition engine.
package model

type Status string

const (
	StatusWIP              Status = "wip"
	StatusReview           Status = "rev"
	StatusPublished        Status = "pub"
	StatusFresh            Status = "fsh"
	StatusTechfixHold      Status = "tfhl"
	StatusTechfixDone      Status = "thdn"
	StatusLeadApproved     Status = "tlapr"
	StatusMovApproved      Status = "movapr"
	StatusQCApproved       Status = "qcap"
	StatusComplete         Status = "cmpt"
	StatusReadyForAnim     Status = "rfa"
	StatusReadyForLighting Status = "rflgt"
	StatusReadyForPublish  Status = "rfp"
	StatusOmit             Status = "omt"
	StatusRejected         Status = "reject"
	StatusMovComplete      Status = "movcpt"
	StatusShotFixComplete  Status = "sfcmpt"
)

// Techfix-record statuses that no longer count as pending against the
// origin task.
var settledTechfixStatuses = map[Status]bool{
	StatusPublished: true,
	StatusOmit:      true,
	StatusRejected:  true,
}

func IsTechfixSettled(s Status) bool {
	return settledTechfixStatuses[s]
}

// SettledTechfixStatuses returns the settled set in a stable order, for use
// in store filters.
func SettledTechfixStatuses() []Status {
	return []Status{StatusPublished, StatusOmit, StatusRejected}
}
