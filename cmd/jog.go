/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/allbin/labctl/internal/rig"
	"github.com/allbin/labctl/internal/tui/components"
	"github.com/allbin/labctl/internal/tui/models"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// jogCmd represents the jog command
var jogCmd = &cobra.Command{
	Use:   "jog",
	Short: "Jog the stages from the keyboard",
	Long: `Open the rig and drive it from a keyboard console.

Movement keys start a continuous jog with the same speeds as the gamepad;
space stops every jogged axis. Press ':' to move a channel to an absolute
position, '!' to abort all stages and '?' for the full key list.

Logging is off while the console owns the terminal; pass --log-file to
keep a log.

Example usage:
  labctl jog
  labctl jog --log-file /tmp/labctl-jog.log --log-level debug`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, _ := cmd.Flags().GetString("log-file")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		jogLog := zerolog.Nop()
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer f.Close()
			jogLog = zerolog.New(f).Level(log.GetLevel()).With().Timestamp().Logger()
		}

		ctx, stop := signalContext()
		defer stop()

		r, err := rig.Open(ctx, cfg, jogLog)
		if err != nil {
			return err
		}
		defer r.Close()

		var channels []rig.Channel
		for _, id := range r.ChannelIDs() {
			ch, err := r.Channel(id)
			if err != nil {
				return err
			}
			channels = append(channels, ch)
		}

		jogCfg := models.DefaultJogConfig()
		jogCfg.Mapping = cfg.Gamepad.MappingConfig()
		jogCfg.PollInterval = cfg.API.StatusInterval
		jogCfg.Info = components.RigInfo{
			Stages:    len(cfg.Stages),
			Channels:  len(channels),
			Trigger:   cfg.Trigger != nil,
			Waveforms: len(cfg.Waveforms),
		}

		m := models.NewJogModel(ctx, r, channels, jogCfg)
		defer m.Cancel()

		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(jogCmd)

	jogCmd.Flags().String("log-file", "", "Write logs to this file while the console runs")
}
