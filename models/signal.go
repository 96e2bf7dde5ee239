package models

import "time"

// SignalCategory is the semantic category inferred from the key path a date
// signal was discovered at.
type SignalCategory string

const (
	SignalPermit     SignalCategory = "permit"
	SignalTransfer   SignalCategory = "transfer"
	SignalAssessment SignalCategory = "assessment"
	SignalUpdate     SignalCategory = "update"
	SignalGeneric    SignalCategory = "generic"
)

// RenewalSignal is a single date value discovered in a listing's raw
// payload. Signals are ephemeral: derived on every run, never persisted.
type RenewalSignal struct {
	Category SignalCategory
	Path     string
	Date     time.Time
	Raw      any
}
