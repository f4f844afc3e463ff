package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/allbin/labctl"
	"github.com/allbin/labctl/internal/rig"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const maxUploadSize = 8 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps device and lookup errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, labctl.ErrInvalidArgument),
		errors.Is(err, labctl.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, rig.ErrUnknownChannel), errors.Is(err, rig.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, labctl.ErrDeviceTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, labctl.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

func done(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "Done.")
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, badRequest("%s %q is not an integer", name, chi.URLParam(r, name))
	}
	return v, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	v, err := strconv.ParseFloat(chi.URLParam(r, name), 64)
	if err != nil {
		return 0, badRequest("%s %q is not a number", name, chi.URLParam(r, name))
	}
	return v, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "Server up.")
}

func (s *Server) handleGamepad(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.rig.SetGamepadEnabled(enabled)
		done(w, r)
	}
}

func (s *Server) fireTrigger(w http.ResponseWriter, r *http.Request, req labctl.TriggerRequest) {
	t, err := s.rig.Trigger()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok, err := t.SendTrigger(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"done": ok})
}

func (s *Server) handleTriggerDefault(w http.ResponseWriter, r *http.Request) {
	s.fireTrigger(w, r, labctl.DefaultTriggerRequest())
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	channel, err := labctl.ParseTriggerChannel(chi.URLParam(r, "channel"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	frames, err := intParam(r, "frames")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.fireTrigger(w, r, labctl.TriggerRequest{
		Channel: channel,
		Frames:  frames,
		Stage:   strings.HasPrefix(chi.URLParam(r, "stage"), "Y"),
		Notify:  strings.HasPrefix(chi.URLParam(r, "notify"), "Y"),
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	channel, err := intParam(r, "channel")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	position, err := floatParam(r, "position")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.rig.MoveChannel(r.Context(), channel, position); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r)
}

func (s *Server) handleVelocity(w http.ResponseWriter, r *http.Request) {
	channel, err := intParam(r, "channel")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	speed, err := floatParam(r, "speed")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.rig.SetChannelVelocity(r.Context(), channel, speed); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r)
}

func (s *Server) handleIsMoving(w http.ResponseWriter, r *http.Request) {
	moving, err := s.rig.AnyMoving(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"is_moving": moving})
}

func (s *Server) handleGetMoving(w http.ResponseWriter, r *http.Request) {
	moving, err := s.rig.Moving(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, moving)
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	pos, err := s.rig.Positions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, pos)
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if err := s.rig.EmergencyStop(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r)
}

func (s *Server) handleResetGalvo(w http.ResponseWriter, r *http.Request) {
	wc, err := s.waveform(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := wc.Reset(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r)
}

func (s *Server) handleUploadWaveTable(w http.ResponseWriter, r *http.Request) {
	wc, err := s.waveform(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := uploadedFile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	table, err := labctl.ParseTable(raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok, err := wc.UploadWaveTable(r.Context(), table)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"done": ok, "samples": len(table)})
}

func (s *Server) handleUploadGateTable(w http.ResponseWriter, r *http.Request) {
	wc, err := s.waveform(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := uploadedFile(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	gates := labctl.ParseGateTable(raw)
	ok, err := wc.UploadGateTable(r.Context(), gates)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"done": ok, "samples": len(gates)})
}

func (s *Server) waveform(r *http.Request) (*labctl.WaveformController, error) {
	id, err := intParam(r, "id")
	if err != nil {
		return nil, err
	}
	return s.rig.Waveform(id)
}

// uploadedFile reads the multipart form field "file"
func uploadedFile(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, badRequest("multipart form: %v", err)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("missing form file %q", "file")
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadSize))
}
