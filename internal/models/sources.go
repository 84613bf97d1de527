package models

/*
Decision and usage constants for use throughout the codebase.
Centralizing these avoids magic strings in logs, API payloads and the usage ledger.
*/

// Decision sources
const (
	DecisionSourceRule     = "rule"     // keyword override fired
	DecisionSourceModel    = "model"    // model prediction passed the gate
	DecisionSourceGate     = "gate"     // model prediction below threshold
	DecisionSourceDegraded = "degraded" // no artifact loaded
	DecisionSourceError    = "error"    // inference failed for this title
)

// Usage service types
const (
	ServiceTypeGeneration     = "generation"
	ServiceTypeCategorization = "categorization"
)
