package model

// EdgeKind is the type of a directed relationship edge the current user owns.
type EdgeKind string

const (
	EdgeFavoriteUser EdgeKind = "favorite_user"
	EdgeBlockUser    EdgeKind = "block_user"
	EdgeFavoriteGym  EdgeKind = "favorite_gym"
)

// EdgeStatus is the three-state value of one edge as the client knows it.
// Pending means a mutation is in flight and the backend has not confirmed yet,
// so consumers can render a distinct "in flight" affordance instead of
// inferring it from loading flags.
type EdgeStatus int

const (
	EdgeConfirmedAbsent EdgeStatus = iota
	EdgeConfirmedPresent
	EdgePending
)

func (s EdgeStatus) String() string {
	switch s {
	case EdgeConfirmedAbsent:
		return "confirmed_absent"
	case EdgeConfirmedPresent:
		return "confirmed_present"
	case EdgePending:
		return "pending"
	}
	return "unknown"
}

// UserListEntry is one row of a relationship list view, e.g. "users I have
// blocked". The list membership is frozen at load time while Status reflects
// the current edge state, so toggling a row does not make it disappear until
// an explicit reload.
type UserListEntry struct {
	UserId string     `json:"user_id"`
	Status EdgeStatus `json:"status"`
}
