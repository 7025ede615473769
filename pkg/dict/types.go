package dict

// Type names one member dictionary of a locale's group.
type Type int

const (
	TypeMain Type = iota
	TypeUser
	TypeContacts
	TypeHistory
	TypeContextual
	TypePersonalization
)

var typeNames = map[Type]string{
	TypeMain:            "main",
	TypeUser:            "user",
	TypeContacts:        "contacts",
	TypeHistory:         "history",
	TypeContextual:      "contextual",
	TypePersonalization: "personalization",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

// AllTypes lists every member type in merge order, main first.
var AllTypes = []Type{
	TypeMain, TypeUser, TypeContacts, TypeHistory, TypeContextual, TypePersonalization,
}

// learnsHistory reports whether observations from AddToUserHistory land in
// this member.
func (t Type) learnsHistory() bool {
	return t == TypeHistory || t == TypePersonalization
}

// State is the lifecycle of one member dictionary. All transitions happen
// on the member's task queue.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateStale
	StateReloading
	StateClosed
)

var stateNames = map[State]string{
	StateUnloaded:  "unloaded",
	StateLoading:   "loading",
	StateReady:     "ready",
	StateStale:     "stale",
	StateReloading: "reloading",
	StateClosed:    "closed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}
