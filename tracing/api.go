// Package tracing lets components report the tasks they work on and lets
// tracers collect them.
package tracing

import (
	"fmt"

	"github.com/sarchlab/memcoherence/sim"
)

// NamedHookable is a hookable domain that tasks can be attributed to.
type NamedHookable interface {
	sim.Named
	sim.Hookable
	InvokeHook(sim.HookCtx)
}

// Hook positions at which the task events are delivered.
var (
	HookPosTaskStart = &sim.HookPos{Name: "HookPosTaskStart"}
	HookPosTaskStep  = &sim.HookPos{Name: "HookPosTaskStep"}
	HookPosTaskEnd   = &sim.HookPos{Name: "HookPosTaskEnd"}
)

// Kinds of the tasks that follow a message.
const (
	KindReqIn  = "req_in"
	KindReqOut = "req_out"
)

func notify(domain NamedHookable, pos *sim.HookPos, task Task) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(sim.HookCtx{Domain: domain, Item: task, Pos: pos})
}

func mustBeSet(value, field string) {
	if value == "" {
		panic(field + " must not be empty")
	}
}

// StartTask reports that the domain starts working on a task. The id, the
// kind, the what, and the name of the domain are mandatory.
func StartTask(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	detail any,
) {
	mustBeSet(id, "id")

	if domain == nil {
		panic("domain must not be nil")
	}

	mustBeSet(kind, "kind")
	mustBeSet(what, "what")

	if domain.Name() == "" {
		panic("domain must have a name")
	}

	notify(domain, HookPosTaskStart, Task{
		ID:       id,
		ParentID: parentID,
		Kind:     kind,
		What:     what,
		Where:    domain.Name(),
		Detail:   detail,
	})
}

// AddTaskStep reports a milestone of a task.
func AddTaskStep(id string, domain NamedHookable, what string) {
	notify(domain, HookPosTaskStep, Task{
		ID:    id,
		Steps: []TaskStep{{What: what}},
	})
}

// EndTask reports that the domain is done with a task.
func EndTask(id string, domain NamedHookable) {
	notify(domain, HookPosTaskEnd, Task{ID: id})
}

// MsgIDAtReceiver is the ID of the task a receiver opens for a message.
func MsgIDAtReceiver(msg sim.Msg, domain NamedHookable) string {
	return fmt.Sprintf("%s@%s", msg.Meta().ID, domain.Name())
}

func senderTaskID(msg sim.Msg) string {
	return msg.Meta().ID + "_" + KindReqOut
}

// TraceReqInitiate opens the sender side task of a request. Its What is the
// type of the message, for example "*vci.ReadReq".
func TraceReqInitiate(msg sim.Msg, domain NamedHookable, taskParentID string) {
	StartTask(senderTaskID(msg), taskParentID, domain,
		KindReqOut, fmt.Sprintf("%T", msg), msg)
}

// TraceReqReceive opens the receiver side task of a request. The task is a
// child of the sender side task.
func TraceReqReceive(msg sim.Msg, domain NamedHookable) {
	StartTask(MsgIDAtReceiver(msg, domain), senderTaskID(msg), domain,
		KindReqIn, fmt.Sprintf("%T", msg), msg)
}

// TraceReqComplete closes the receiver side task once the response is sent.
func TraceReqComplete(msg sim.Msg, domain NamedHookable) {
	EndTask(MsgIDAtReceiver(msg, domain), domain)
}

// TraceReqFinalize closes the sender side task once the response arrives.
func TraceReqFinalize(msg sim.Msg, domain NamedHookable) {
	EndTask(senderTaskID(msg), domain)
}
