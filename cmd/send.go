/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/allbin/labctl"
	"github.com/allbin/labctl/internal/rig"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [frame] <port>",
	Short: "Send a raw frame to a device and print its replies",
	Long: `Send one raw frame to a serial device and print the lines it answers.

Useful for poking a controller by hand, e.g. asking an ESP30x for its
version or error buffer. The frame can be provided as:
- Command line argument: send "1TP?" /dev/ttyUSB0 --newline
- From stdin (pipe): echo "VE?" | labctl send /dev/ttyUSB0 --newline
- Interactive mode: labctl send /dev/ttyUSB0 (prompts for input)

Frames are sent as is; pass --newline for the ESP30x "\n" terminator or
--cr for the trigger unit's "\r". Replies are read until --replies lines
arrived or the device stays quiet for --timeout.

Example usage:
  labctl send "VE?" /dev/ttyUSB0 --newline
  labctl send "TB?" /dev/ttyUSB0 --newline --replies 1
  labctl send "TANN1" /dev/ttyACM0 --cr --timeout 10s
  labctl send "52" /dev/ttyACM1 --hex`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data string
		var portPath string

		if len(args) == 1 {
			portPath = args[0]
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data = args[0]
			portPath = args[1]
		}

		baudRate, _ := cmd.Flags().GetInt("baud")
		flowControl, _ := cmd.Flags().GetString("flow-control")
		driver, _ := cmd.Flags().GetString("driver")
		addNewline, _ := cmd.Flags().GetBool("newline")
		addCR, _ := cmd.Flags().GetBool("cr")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		replies, _ := cmd.Flags().GetInt("replies")

		if hexMode {
			processedData, err := parseHexString(data)
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
			data = processedData
		}

		switch {
		case addNewline && !hexMode:
			data += "\n"
		case addCR && !hexMode:
			data += "\r"
		}

		pc := rig.PortConfig{Port: portPath, Baud: baudRate, FlowControl: flowControl, Driver: driver}
		opts, err := pc.Options()
		if err != nil {
			return err
		}

		return sendFrame(portPath, []byte(data), timeout, replies, opts...)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().IntP("baud", "b", 115200, "Baud rate")
	sendCmd.Flags().StringP("flow-control", "f", "none", "Flow control: none, rtscts")
	sendCmd.Flags().String("driver", "termios", "Port driver: termios, bugst")
	sendCmd.Flags().BoolP("newline", "n", false, "Terminate the frame with \\n")
	sendCmd.Flags().Bool("cr", false, "Terminate the frame with \\r")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '52' for 'R')")
	sendCmd.Flags().DurationP("timeout", "t", 2*time.Second, "Stop reading after this long without a reply")
	sendCmd.Flags().IntP("replies", "r", 0, "Stop after this many reply lines (0 = until timeout)")
}

func promptForData() string {
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter frame to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func parseHexString(hexStr string) (string, error) {
	hexStr = strings.ReplaceAll(hexStr, " ", "")
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")

	if len(hexStr)%2 != 0 {
		return "", fmt.Errorf("hex string must have even length")
	}

	var result strings.Builder
	for i := 0; i < len(hexStr); i += 2 {
		hexByte := hexStr[i : i+2]
		var b byte
		if _, err := fmt.Sscanf(hexByte, "%x", &b); err != nil {
			return "", fmt.Errorf("invalid hex byte '%s': %v", hexByte, err)
		}
		result.WriteByte(b)
	}

	return result.String(), nil
}

// printable replaces control bytes with a dot for display
func printable(b []byte) string {
	s := string(b)
	if len(s) > 60 {
		s = s[:60] + "..."
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '·'
		}
		return r
	}, s)
}

func sendFrame(portPath string, frame []byte, timeout time.Duration, replies int, opts ...labctl.Option) error {
	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), portPath)

	t, err := labctl.OpenTransport(portPath, log, opts...)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("✗"), err)
	}
	defer t.Close()

	ctx, stop := signalContext()
	defer stop()

	return t.Do(ctx, func(l *labctl.Line) error {
		if err := l.WriteLine(frame); err != nil {
			return fmt.Errorf("%s send: %w", errorStyle.Render("✗"), err)
		}
		fmt.Printf("%s Sent %d bytes: %s\n", successStyle.Render("✓"), len(frame), printable(frame))

		for n := 0; replies == 0 || n < replies; n++ {
			if ctx.Err() != nil {
				return nil
			}
			reply, err := l.ReadLine(timeout)
			if errors.Is(err, labctl.ErrDeviceTimeout) || errors.Is(err, context.Canceled) {
				if n == 0 {
					fmt.Printf("%s No reply within %s\n", faintStyle.Render("…"), timeout)
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s read: %w", errorStyle.Render("✗"), err)
			}
			fmt.Printf("%s %s\n", infoStyle.Render("←"), printable(reply))
		}
		return nil
	})
}
