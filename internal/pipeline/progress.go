package pipeline

import (
	"time"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// tracker publishes progress updates with a monotone percent. An update that
// would move the percent backwards is clamped to the last published value so
// observers never see regressions.
type tracker struct {
	operationID string
	sink        domain.ProgressSink
	now         func() time.Time
	last        int
}

func newTracker(operationID string, sink domain.ProgressSink, now func() time.Time) *tracker {
	return &tracker{
		operationID: operationID,
		sink:        sink,
		now:         now,
	}
}

func (t *tracker) publish(step string, band domain.RiskBand, percent int, message string) {
	if percent < t.last {
		percent = t.last
	}
	if percent > 100 {
		percent = 100
	}
	t.last = percent

	t.sink.Publish(domain.Progress{
		OperationID: t.operationID,
		Step:        step,
		Band:        band,
		Percent:     percent,
		Message:     message,
		At:          t.now(),
	})
}
