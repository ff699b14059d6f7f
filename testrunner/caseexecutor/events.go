package caseexecutor

import "time"

// SectionEvent is emitted before the children of a section run
type SectionEvent struct {
	Header string
	Depth  int
}

// TestEvent is emitted after a test case finished
type TestEvent struct {
	Name     string
	Depth    int
	Line     int
	Outcome  Outcome
	Duration time.Duration
}

// EventSink receives executor events in document order
type EventSink interface {
	SectionEntered(ev SectionEvent)
	TestFinished(ev TestEvent)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) SectionEntered(SectionEvent) {}
func (NopSink) TestFinished(TestEvent)      {}

// RecordingSink keeps all events; used by tests and by reporters that render at the end.
type RecordingSink struct {
	Sections []SectionEvent
	Tests    []TestEvent
	Order    []any
}

func (r *RecordingSink) SectionEntered(ev SectionEvent) {
	r.Sections = append(r.Sections, ev)
	r.Order = append(r.Order, ev)
}

func (r *RecordingSink) TestFinished(ev TestEvent) {
	r.Tests = append(r.Tests, ev)
	r.Order = append(r.Order, ev)
}
