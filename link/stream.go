package link

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/regslave/packet"
)

// StreamSummary counts what a packet stream produced.
type StreamSummary struct {
	Bytes     int
	Accepted  int
	CRCErrors int
	Overflows int
	Abandoned int
}

func (s *StreamSummary) add(v packet.Verdict) {
	switch v {
	case packet.Accepted:
		s.Accepted++
	case packet.CRCError:
		s.CRCErrors++
	case packet.Overflow:
		s.Overflows++
	case packet.Abandoned:
		s.Abandoned++
	}
}

// StreamPackets feeds the packet port from r until EOF or until ctx is done.
// It runs in the caller's goroutine, so it can drive the packet domain while
// another goroutine drives the command domain.
func StreamPackets(
	ctx context.Context,
	r io.Reader,
	port PacketPort,
) (StreamSummary, error) {
	var summary StreamSummary
	buf := make([]byte, 512)

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			summary.add(port.OnByteReceived(b))
		}
		summary.Bytes += n

		if errors.Is(err, io.EOF) {
			return summary, nil
		}

		if err != nil {
			return summary, fmt.Errorf("link: reading packet stream: %w", err)
		}
	}
}
