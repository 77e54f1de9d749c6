package device

import (
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/tracing"
	"github.com/sarchlab/regslave/transaction"
)

// Task kinds reported by a traced device.
const (
	TaskKindFrame   = "frame"
	TaskKindSession = "session"
)

// taskHook turns frame and session hooks into tracing tasks on the same
// domain. A frame task ends with its verdict as a step; a session task has
// its command and its outcome as steps.
type taskHook struct{}

func (taskHook) Func(ctx hooking.HookCtx) {
	domain, ok := ctx.Domain.(tracing.NamedHookable)
	if !ok {
		return
	}

	switch ctx.Pos {
	case packet.HookPosFrameStart:
		info := ctx.Item.(packet.FrameInfo)
		tracing.StartTask(info.ID, "", domain, TaskKindFrame, "frame", info)
	case packet.HookPosFrameEnd:
		info := ctx.Item.(packet.FrameInfo)
		if info.ID == "" {
			return
		}
		tracing.AddTaskStep(info.ID, domain, info.Verdict.String())
		tracing.EndTask(info.ID, domain)
	case transaction.HookPosSessionStart:
		s := ctx.Item.(transaction.SessionInfo)
		tracing.StartTask(s.ID, "", domain, TaskKindSession, "session", s)
	case transaction.HookPosCommand:
		s := ctx.Item.(transaction.SessionInfo)
		if s.ID == "" {
			return
		}
		tracing.AddTaskStep(s.ID, domain, s.Command.String())
	case transaction.HookPosSessionEnd:
		s := ctx.Item.(transaction.SessionInfo)
		if s.ID == "" {
			return
		}
		tracing.AddTaskStep(s.ID, domain, s.Outcome.String())
		tracing.EndTask(s.ID, domain)
	}
}

// Trace lets the tracer collect frame tasks from the packet domain and
// session tasks from the command domain.
func (c *Comp) Trace(tracer tracing.Tracer) {
	for _, domain := range []tracing.NamedHookable{c.decoder, c.cmd} {
		tracing.CollectTrace(domain, tracer)
		if !hasTaskHook(domain) {
			domain.AcceptHook(taskHook{})
		}
	}
}

func hasTaskHook(domain hooking.Hookable) bool {
	for _, h := range domain.Hooks() {
		if _, ok := h.(taskHook); ok {
			return true
		}
	}

	return false
}
