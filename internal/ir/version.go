package ir

// Version constants for the rule model and engine.
const (
	// RuleVersion is the rule document schema version.
	RuleVersion = "1"

	// EngineVersion is the easyevents engine version.
	EngineVersion = "0.1.0"
)
