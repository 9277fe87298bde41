package domain

import "time"

// Progress is one step of a pipeline run as reported to observers. Percent is
// monotonically non-decreasing within a run and lands on 100 exactly once,
// at the terminal step.
type Progress struct {
	OperationID string    `json:"operationId"`
	Step        string    `json:"step"`
	Band        RiskBand  `json:"band,omitempty"`
	Percent     int       `json:"percent"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
}

// ProgressSink receives progress updates. Implementations must not block the
// pipeline; slow consumers drop updates rather than stall execution.
type ProgressSink interface {
	Publish(p Progress)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(Progress)

// Publish implements ProgressSink.
func (f ProgressFunc) Publish(p Progress) { f(p) }

// NopProgress discards all updates.
var NopProgress ProgressSink = ProgressFunc(func(Progress) {})
