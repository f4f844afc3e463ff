// Package labctl drives laboratory hardware over point-to-point serial
// links: Newport ESP30x multi-axis stage controllers, a frame-trigger unit
// and per-channel waveform/gate generators.
//
// Every device sits behind a Transport, which lets exactly one caller at a
// time write a command and read its reply. Controllers are safe to share
// between goroutines; commands issued concurrently are executed one after
// another, never interleaved on the wire.
//
// # Basic Usage
//
// Open a stage controller and move an axis:
//
//	t, err := labctl.OpenTransport("/dev/ttyUSB0", log,
//	    labctl.WithBaudRate(19200),
//	    labctl.WithFlowControl(labctl.FlowControlRTSCTS),
//	)
//	if err != nil {
//	    return err
//	}
//	stage := labctl.NewMotionController(t, labctl.DefaultMotionConfig(), log)
//	defer stage.Close()
//
//	err = stage.SetVelocity(ctx, 1, 2.5)
//	err = stage.MoveToAndWait(ctx, 1, 10)
//	pos, err := stage.Position(ctx)
//
// Fire a trigger burst and wait for the unit to finish:
//
//	done, err := trigger.SendTrigger(ctx, labctl.TriggerRequest{
//	    Channel: labctl.AllChannels,
//	    Frames:  500,
//	    Stage:   true,
//	})
//
// Load the default waveform and gate tables on a generator:
//
//	err := wave.LoadDefaults(ctx, "488.txt")
//
// # Error Handling
//
// Use errors.Is() with the sentinel errors:
//
//	var (
//	    ErrDeviceTimeout   // no reply within the read timeout
//	    ErrProtocol        // reply did not parse (see *ProtocolError)
//	    ErrParse           // malformed default table (see *ParseError)
//	    ErrInvalidArgument // rejected before anything was written
//	)
//
// Nothing is retried automatically unless MotionConfig.QueryRetries is set,
// and then only for position and status queries.
//
// # Known Limitations
//
// EmergencyStop waits for the line like any other command, so it runs only
// after the command currently holding the transport has been written and,
// for trigger bursts and table uploads, acknowledged.
package labctl
