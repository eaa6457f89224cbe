package models

// VersionStatus is the lifecycle state of a register version.
type VersionStatus string

const (
	// StatusUnconfirmed is the initial state of a freshly derived draft.
	StatusUnconfirmed VersionStatus = "unconfirmed"
	// StatusDraft marks a version ready for publication review.
	StatusDraft VersionStatus = "draft"
	// StatusLive is the single publicly visible version of an entity.
	StatusLive VersionStatus = "live"
	// StatusArchived marks a version withdrawn from public visibility.
	StatusArchived VersionStatus = "archived"
)

// validTransitions encodes the version state machine:
//
//	Unconfirmed -> Draft            (confirm)
//	Draft       -> Draft            (re-confirm is a no-op transition)
//	Draft       -> Live             (publish)
//	Unconfirmed -> Archived         (withdraw before review)
//	Draft       -> Archived         (archive)
//	Live        -> Archived         (demoted by another version's publish)
//	Live        -> Draft            (demoted by another version's archive)
//
// Archived is terminal for direct operations.
var validTransitions = map[VersionStatus][]VersionStatus{
	StatusUnconfirmed: {StatusDraft, StatusArchived},
	StatusDraft:       {StatusDraft, StatusLive, StatusArchived},
	StatusLive:        {StatusArchived, StatusDraft},
	StatusArchived:    {},
}

// CanTransitionTo reports whether the state machine permits moving from s to
// target.
func (s VersionStatus) CanTransitionTo(target VersionStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsValid reports whether s is one of the known lifecycle states.
func (s VersionStatus) IsValid() bool {
	switch s {
	case StatusUnconfirmed, StatusDraft, StatusLive, StatusArchived:
		return true
	}
	return false
}
