// Package telemetry fans rig readings and session events out to plots,
// time-series storage, message brokers and metrics.
package telemetry

import (
	"sync"
	"time"
)

// Series names used by the rig.
const (
	SeriesPressure = "pressure"
	SeriesWell     = "well"
)

// Event kinds used by the rig.
const (
	EventDoseCycle  = "dose_cycle"
	EventDoseState  = "dose_state"
	EventDegasStage = "degas_stage"
	EventRow        = "row"
	EventParseError = "parse_error"
)

// A Sample is one smoothed or aggregated reading.
type Sample struct {
	Series string
	Time   time.Time
	Value  float64

	// Tags identify the sample within its series (e.g. the well label).
	Tags map[string]string
}

// An Event is a state change of a rig session.
type Event struct {
	Kind   string
	Time   time.Time
	Fields map[string]interface{}
}

// A Sink receives samples and events. Implementations must not block the
// caller for long; network sinks buffer or drop.
type Sink interface {
	Sample(Sample)
	Event(Event)
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Sample(Sample) {}
func (discard) Event(Event)   {}

// Fanout delivers to every sink in order.
type Fanout struct {
	mx    sync.RWMutex
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add appends s. Nil sinks are ignored.
func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mx.Lock()
	f.sinks = append(f.sinks, s)
	f.mx.Unlock()
}

func (f *Fanout) Sample(s Sample) {
	f.mx.RLock()
	defer f.mx.RUnlock()
	for _, sink := range f.sinks {
		sink.Sample(s)
	}
}

func (f *Fanout) Event(e Event) {
	f.mx.RLock()
	defer f.mx.RUnlock()
	for _, sink := range f.sinks {
		sink.Event(e)
	}
}

// Recorder keeps everything it receives. It is safe for concurrent use.
type Recorder struct {
	mx      sync.Mutex
	samples []Sample
	events  []Event
}

func (r *Recorder) Sample(s Sample) {
	r.mx.Lock()
	r.samples = append(r.samples, s)
	r.mx.Unlock()
}

func (r *Recorder) Event(e Event) {
	r.mx.Lock()
	r.events = append(r.events, e)
	r.mx.Unlock()
}

// Samples returns a copy of the received samples.
func (r *Recorder) Samples() []Sample {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]Sample(nil), r.samples...)
}

// Events returns a copy of the received events, optionally filtered by kind.
func (r *Recorder) Events(kind string) []Event {
	r.mx.Lock()
	defer r.mx.Unlock()
	var res []Event
	for _, e := range r.events {
		if kind == "" || e.Kind == kind {
			res = append(res, e)
		}
	}
	return res
}
