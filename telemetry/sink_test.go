package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFanout(t *testing.T) {
	var a, b Recorder
	f := NewFanout(&a, nil, &b)
	now := time.Now()

	f.Sample(Sample{Series: SeriesPressure, Time: now, Value: 1.5})
	f.Event(Event{Kind: EventDoseCycle, Time: now})
	f.Event(Event{Kind: EventRow, Time: now})

	for _, r := range []*Recorder{&a, &b} {
		assert.Equal(t, []Sample{{Series: SeriesPressure, Time: now, Value: 1.5}}, r.Samples())
		assert.Len(t, r.Events(""), 2)
		assert.Len(t, r.Events(EventRow), 1)
	}

	Discard.Sample(Sample{})
	Discard.Event(Event{})
}
