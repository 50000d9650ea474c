package tracing

import "github.com/sarchlab/memcoherence/sim"

// A TaskStep is a milestone reached while a task is processed.
type TaskStep struct {
	Time sim.VTimeInSec `json:"time"`
	What string         `json:"what"`
}

// A Task is a span of work done by one domain, such as a component serving
// a request.
type Task struct {
	ID        string         `json:"id"`
	ParentID  string         `json:"parent_id"`
	Kind      string         `json:"kind"`
	What      string         `json:"what"`
	Where     string         `json:"where"`
	StartTime sim.VTimeInSec `json:"start_time"`
	EndTime   sim.VTimeInSec `json:"end_time"`
	Steps     []TaskStep     `json:"steps"`
	Detail    any            `json:"-"`
}

// TaskFilter selects the tasks a tracer keeps.
type TaskFilter func(t Task) bool

// KindIs returns a filter that accepts the tasks of one kind.
func KindIs(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}

// WhatIs returns a filter that accepts the tasks of one kind and one what.
func WhatIs(kind, what string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind && t.What == what
	}
}
