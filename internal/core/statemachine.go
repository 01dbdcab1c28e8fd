package core

// entityTransitions encodes the legal EntityStatus graph from spec §4.1:
//
//	registered → validated → deployed → active ↔ inactive
//	        ↘ failed               ↘ deprecated
//
// deleted_at may be set from any status, so soft-delete is not modeled
// here — it is checked separately by the store gateway.
var entityTransitions = map[EntityStatus][]EntityStatus{
	EntityStatusRegistered: {EntityStatusValidated, EntityStatusFailed},
	EntityStatusValidated:  {EntityStatusDeployed, EntityStatusFailed},
	EntityStatusDeployed:   {EntityStatusActive, EntityStatusDeprecated, EntityStatusFailed},
	EntityStatusActive:     {EntityStatusInactive, EntityStatusDeprecated},
	EntityStatusInactive:   {EntityStatusActive, EntityStatusDeprecated},
	EntityStatusDeprecated: {},
	EntityStatusFailed:     {},
}

// CanTransitionEntity reports whether moving an entity from `from` to `to`
// is a legal edge in the status graph. A no-op transition (from == to) is
// always legal.
func CanTransitionEntity(from, to EntityStatus) bool {
	if from == to {
		return true
	}
	for _, next := range entityTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
