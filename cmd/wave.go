/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/allbin/labctl"
	"github.com/allbin/labctl/internal/rig"
	"github.com/spf13/cobra"
)

var waveID int

// waveCmd represents the wave command
var waveCmd = &cobra.Command{
	Use:   "wave",
	Short: "Upload tables to a waveform/gate generator",
	Long: `Reset a waveform generator or upload waveform and gate tables to it.

Waveform files hold comma separated hex samples ("0A,1F00,..."). Gate
files hold a Y/N pattern ("NNNYYYYNNN"); Y opens the gate.

Examples:
  labctl wave reset --id 0
  labctl wave load --id 1
  labctl wave upload sweep.csv --id 0
  labctl wave gate gate.txt --id 0`,
}

func withWaveform(fn func(ctx context.Context, cfg rig.WaveformConfig, w *labctl.WaveformController) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	wc, err := cfg.FindWaveform(waveID)
	if err != nil {
		return err
	}
	w, err := rig.OpenWaveform(wc, log)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signalContext()
	defer stop()
	return fn(ctx, wc, w)
}

func acknowledged(what string, start time.Time, done bool, err error) error {
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("%s: unit answered without the done marker", what)
	}
	fmt.Printf("%s %s %s\n", successStyle.Render("✓"), what, faintStyle.Render(time.Since(start).Round(time.Millisecond).String()))
	return nil
}

var waveResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the generator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWaveform(func(ctx context.Context, _ rig.WaveformConfig, w *labctl.WaveformController) error {
			start := time.Now()
			done, err := w.Reset(ctx)
			return acknowledged("reset", start, done, err)
		})
	},
}

var waveLoadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Reset and load the default waveform and gate tables",
	Long: `Reset the generator, upload a waveform table and then the configured
gate pattern. Without an argument the defaults file from labctl.yaml is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWaveform(func(ctx context.Context, cfg rig.WaveformConfig, w *labctl.WaveformController) error {
			path := cfg.Defaults
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("waveform %d has no defaults file, pass one as argument", cfg.ID)
			}

			start := time.Now()
			if err := w.LoadDefaults(ctx, path); err != nil {
				var step *labctl.StepError
				if errors.As(err, &step) {
					fmt.Printf("%s failed at %s\n", errorStyle.Render("✗"), step.Step)
				}
				return err
			}
			fmt.Printf("%s loaded %s on %s %s\n", successStyle.Render("✓"), infoStyle.Render(path), w.Name(), faintStyle.Render(time.Since(start).Round(time.Millisecond).String()))
			return nil
		})
	},
}

var waveUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a waveform table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		samples, err := labctl.ParseTable(raw)
		if err != nil {
			return err
		}

		return withWaveform(func(ctx context.Context, _ rig.WaveformConfig, w *labctl.WaveformController) error {
			start := time.Now()
			done, err := w.UploadWaveTable(ctx, samples)
			return acknowledged(strconv.Itoa(len(samples))+" samples uploaded", start, done, err)
		})
	},
}

var waveGateCmd = &cobra.Command{
	Use:   "gate <file>",
	Short: "Upload a gate table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		gates := labctl.ParseGateTable(raw)

		return withWaveform(func(ctx context.Context, _ rig.WaveformConfig, w *labctl.WaveformController) error {
			start := time.Now()
			done, err := w.UploadGateTable(ctx, gates)
			return acknowledged(strconv.Itoa(len(gates))+" gates uploaded", start, done, err)
		})
	},
}

func init() {
	rootCmd.AddCommand(waveCmd)

	waveCmd.PersistentFlags().IntVarP(&waveID, "id", "i", 0, "Waveform generator id from labctl.yaml")
	waveCmd.AddCommand(waveResetCmd, waveLoadCmd, waveUploadCmd, waveGateCmd)
}
