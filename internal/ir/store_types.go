package ir

// NOTE: These are store-layer records, not part of the rule model.
// They use auto-increment IDs for row identity.

// Firing is one recorded notification of a derived event.
type Firing struct {
	ID      int64  `json:"id"`      // Auto-increment (store)
	Session string `json:"session"` // Recording session token
	Seq     int64  `json:"seq"`     // Logical clock
	Event   string `json:"event"`   // Derived event name
	Args    string `json:"args"`    // Canonical JSON of the merged arguments
	Hash    string `json:"hash"`    // FiringID
}

// Session groups the firings written by one recorder.
type Session struct {
	ID         string `json:"id"`
	RulesHash  string `json:"rules_hash"`  // RulesHash of the rule set in effect
	StartedSeq int64  `json:"started_seq"` // Clock position when the session began
	Firings    int64  `json:"firings"`     // Derived (count), not stored
}
