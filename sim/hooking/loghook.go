package hooking

import (
	"fmt"
	"log"
	"sync"
)

// Named is implemented by hookable domains that can be identified in logs.
type Named interface {
	Name() string
}

// A LogHook prints every hook it receives with the given logger. It can be
// attached to several domains at once.
type LogHook struct {
	*log.Logger

	lock      sync.Mutex
	positions map[*HookPos]bool
}

// NewLogHook creates a LogHook. If positions are given, only those positions
// are logged.
func NewLogHook(logger *log.Logger, positions ...*HookPos) *LogHook {
	h := &LogHook{
		Logger: logger,
	}

	if len(positions) > 0 {
		h.positions = make(map[*HookPos]bool)
		for _, p := range positions {
			h.positions[p] = true
		}
	}

	return h
}

// Func logs the hook context.
func (h *LogHook) Func(ctx HookCtx) {
	if h.positions != nil && !h.positions[ctx.Pos] {
		return
	}

	where := "?"
	if named, ok := ctx.Domain.(Named); ok {
		where = named.Name()
	}

	msg := fmt.Sprintf("%s %s: %v", where, ctx.Pos.Name, ctx.Item)
	if ctx.Detail != nil {
		msg += fmt.Sprintf(" (%v)", ctx.Detail)
	}

	h.lock.Lock()
	h.Println(msg)
	h.lock.Unlock()
}
