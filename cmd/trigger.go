/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/allbin/labctl"
	"github.com/allbin/labctl/internal/rig"
	"github.com/spf13/cobra"
)

// triggerCmd represents the trigger command
var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Fire a burst of frame triggers",
	Long: `Fire a burst of frame triggers on the trigger unit and wait until the
unit reports the burst is done.

The channel is a number, or A for every channel. Without flags the burst
is 1000 frames on all channels with stage stepping on.

Example usage:
  labctl trigger
  labctl trigger --channel 2 --frames 250 --notify
  labctl trigger --frames 10 --stage=false`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		frames, _ := cmd.Flags().GetInt("frames")
		stage, _ := cmd.Flags().GetBool("stage")
		notify, _ := cmd.Flags().GetBool("notify")

		ch, err := labctl.ParseTriggerChannel(channel)
		if err != nil {
			return err
		}
		req := labctl.TriggerRequest{Channel: ch, Frames: frames, Stage: stage, Notify: notify}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Trigger == nil {
			return fmt.Errorf("%w: no trigger unit configured", rig.ErrUnknownDevice)
		}

		tc, err := rig.OpenTrigger(*cfg.Trigger, log)
		if err != nil {
			return err
		}
		defer tc.Close()

		ctx, stop := signalContext()
		defer stop()

		fmt.Printf("Firing %s frames on channel %s...\n", infoStyle.Render(fmt.Sprint(frames)), infoStyle.Render(ch.String()))
		start := time.Now()
		done, err := tc.SendTrigger(ctx, req)
		if err != nil {
			return err
		}
		if !done {
			return errors.New("trigger unit answered without the done marker")
		}
		fmt.Printf("%s burst done %s\n", successStyle.Render("✓"), faintStyle.Render(time.Since(start).Round(time.Millisecond).String()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)

	def := labctl.DefaultTriggerRequest()
	triggerCmd.Flags().String("channel", def.Channel.String(), "Trigger channel number, or A for all")
	triggerCmd.Flags().IntP("frames", "n", def.Frames, "Number of frames")
	triggerCmd.Flags().Bool("stage", def.Stage, "Step the stage between frames")
	triggerCmd.Flags().Bool("notify", def.Notify, "Signal the host for every frame")
}
