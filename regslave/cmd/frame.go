package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sarchlab/regslave/packet"
	"github.com/spf13/cobra"
)

var frameType uint8

var frameCmd = &cobra.Command{
	Use:   "frame [PAYLOAD_HEX]",
	Short: "Encode a packet frame.",
	Long: "`frame --type 2 10aa` prints the bytes of a frame, SOF and CRC " +
		"included, in hex.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload []byte

		if len(args) == 1 {
			var err error

			payload, err = hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
			if err != nil {
				return fmt.Errorf("payload: %w", err)
			}
		}

		data, err := packet.Encode(packet.Frame{Type: frameType, Payload: payload})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "% x\n", data)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(frameCmd)
	frameCmd.Flags().Uint8VarP(&frameType, "type", "t", 0, "Frame type")
}
