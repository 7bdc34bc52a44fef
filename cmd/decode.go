// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/opilio/pkg/otw"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode frames given as hex",
	Long: `Decode opilio frames written as hex and print them in human-readable form.

Each argument is one frame. Spaces, colons and a leading 0x are ignored, so
dumps copied from a logic analyser or a serial monitor can be pasted as is.
Without arguments, frames are read from stdin, one per line.

Examples:
  opilio decode 8204f6
  opilio decode "82 07 00"
  xxd -p capture.bin | opilio decode`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		failed := 0
		for _, arg := range args {
			if !decodeLine(out, arg) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d frames failed to decode", failed, len(args))
		}
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		decodeLine(out, line)
	}
	return scanner.Err()
}

// decodeLine prints one decoded frame, or the error, and reports success
func decodeLine(w io.Writer, text string) bool {
	raw, err := parseHex(text)
	if err != nil {
		fmt.Fprintf(w, "[ERROR] %v\n", err)
		return false
	}
	frame, err := otw.Decode(raw)
	if err != nil {
		fmt.Fprintf(w, "[ERROR] %v\n", err)
		return false
	}
	fmt.Fprint(w, otw.FormatFrame(frame))
	return true
}

// parseHex accepts hex with optional 0x prefix and space or colon separators
func parseHex(text string) ([]byte, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
	if s == "" {
		return nil, fmt.Errorf("empty frame")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", text, err)
	}
	return b, nil
}
