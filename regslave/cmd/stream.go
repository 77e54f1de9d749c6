package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sarchlab/regslave/device"
	"github.com/sarchlab/regslave/link"
	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:   "stream [FILE]",
	Short: "Feed a raw packet stream to a device.",
	Long: "`stream` delivers the bytes of FILE, or of stdin when FILE is " +
		"missing or -, to the packet domain and prints the frame verdicts " +
		"and the registers.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin

		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			r = f
		}

		e, err := newEnv()
		if err != nil {
			return err
		}

		defer e.close()

		b := device.MakeBuilder()
		if opts.fifoDepth > 0 {
			b = b.WithFIFODepth(opts.fifoDepth)
		}
		dev := b.Build("Dev")
		e.attach(dev)

		ctx, stop := signal.NotifyContext(
		contextOrBackground(cmd.Context()), os.Interrupt)
		defer stop()

		summary, err := link.StreamPackets(ctx, r, dev.Packets())
		if err != nil && ctx.Err() == nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out,
			"bytes=%d accepted=%d crc_errors=%d overflows=%d abandoned=%d\n",
			summary.Bytes, summary.Accepted, summary.CRCErrors,
			summary.Overflows, summary.Abandoned)
		printRegisters(out, dev)

		e.hold()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

func printRegisters(w io.Writer, dev *device.Comp) {
	for _, reg := range dev.Snapshot().Registers {
		fmt.Fprintf(w, "%-8s 0x%02x %s 0x%08x\n",
			reg.Name, reg.Address(), reg.Access, reg.Value)
	}
}

// contextOrBackground returns ctx, or the background context when a command
// runs without one.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}
