/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/allbin/labctl/internal/api"
	"github.com/allbin/labctl/internal/input"
	"github.com/allbin/labctl/internal/rig"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gamepad loop",
	Long: `Open every configured device and serve the HTTP API.

Waveform generators with a defaults file get their tables loaded before
the API starts listening. Unless --no-gamepad is given the joystick device
is read as well; a missing pad is retried every second. The pad can be
switched off and on at runtime with /disable_gamepad and /enable_gamepad.

Example usage:
  labctl serve
  labctl serve --listen 127.0.0.1:5000 --no-gamepad
  LABCTL_GAMEPAD_DEVICE=/dev/input/js1 labctl serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noGamepad, _ := cmd.Flags().GetBool("no-gamepad")

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

		g, ctx := errgroup.WithContext(ctx)

		srv := api.NewServer(r,
			api.WithLogger(log.With().Str("component", "api").Logger()),
			api.WithStatusInterval(cfg.API.StatusInterval),
		)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.API.Listen)
		})

		if !noGamepad && cfg.Gamepad.Device != "" {
			padLog := log.With().Str("component", "gamepad").Logger()
			events := make(chan input.Event, 64)
			js := input.NewJoystick(cfg.Gamepad.Device, padLog)
			dispatcher := input.NewDispatcher(input.NewMapping(cfg.Gamepad.MappingConfig()), r, r.GamepadEnabled, padLog)

			g.Go(func() error {
				return js.Run(ctx, events)
			})
			g.Go(func() error {
				return dispatcher.Run(ctx, events)
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info().Msg("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", ":5000", "Address for the HTTP API")
	serveCmd.Flags().Bool("no-gamepad", false, "Do not read the joystick device")
	v.BindPFlag("api.listen", serveCmd.Flags().Lookup("listen"))
}
