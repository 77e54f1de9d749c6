// Package link provides the external collaborators of a device: a host that
// runs register sessions, a packet source, and a sink that drains the
// outbound FIFO. The drivers are timing handlers, so a timing engine decides
// when each byte moves.
package link

import (
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/transaction"
)

// CommandPort is the command domain of a device.
type CommandPort interface {
	SessionStart()
	Exchange(b byte) byte
	SessionEnd() transaction.Outcome
}

// PacketPort is the packet domain of a device.
type PacketPort interface {
	OnByteReceived(b byte) packet.Verdict
}

// OutboundPort is where the external byte sink reads from.
type OutboundPort interface {
	DrainOutbound(limit int) []byte
}

// A Doner reports whether a driver has finished its script.
type Doner interface {
	Done() bool
}

type tickEvent struct{}
