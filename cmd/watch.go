/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/allbin/labctl/internal/rig"
	"github.com/spf13/cobra"
)

var (
	watchInterval time.Duration
	watchOnce     bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print channel positions and motion state",
	Long: `Open the rig and print the position and motion state of every
channel, once or at a fixed interval. Press Ctrl+C to stop.

A line is printed only when something changed since the previous one.
Query errors are reported and polling continues.

Examples:
  labctl watch
  labctl watch --interval 100ms
  labctl watch --once`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		r, err := rig.Open(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer r.Close()

		if watchOnce {
			snap, err := r.Snapshot(ctx)
			if err != nil {
				return err
			}
			fmt.Println(formatSnapshot(snap))
			return nil
		}

		fmt.Printf("Watching %d channel(s) every %s\n", len(r.ChannelIDs()), watchInterval)
		fmt.Println("Press Ctrl+C to stop")

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		var last string
		for {
			snap, err := r.Snapshot(ctx)
			switch {
			case ctx.Err() != nil:
				return nil
			case err != nil:
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), errorStyle.Render(err.Error()))
				last = ""
			default:
				if line := formatSnapshot(snap); line != last {
					fmt.Printf("[%s] %s\n", snap.Time.Format("15:04:05.000"), line)
					last = line
				}
			}

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

// formatSnapshot renders one line per snapshot, channels in id order
func formatSnapshot(s rig.Snapshot) string {
	ids := make([]int, 0, len(s.Positions))
	for id := range s.Positions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	parts := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		pos := fmt.Sprintf("%d:%9.3f", id, s.Positions[id])
		if s.Moving[id] {
			parts = append(parts, successStyle.Render(pos+" ▶"))
		} else {
			parts = append(parts, pos+"  ")
		}
	}
	if s.GamepadEnabled {
		parts = append(parts, faintStyle.Render("pad:on"))
	} else {
		parts = append(parts, faintStyle.Render("pad:off"))
	}
	return strings.Join(parts, "  ")
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 500*time.Millisecond, "Polling interval")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Print one snapshot and exit")
}
