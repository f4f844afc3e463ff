package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/allbin/labctl"
	"github.com/allbin/labctl/internal/labtest"
	"github.com/allbin/labctl/internal/rig"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type testBench struct {
	rig     *rig.Rig
	xy, z   *labtest.Stage
	trigger *labtest.Port
	wave    *labtest.Port
	handler http.Handler
}

func newTestBench(t *testing.T) *testBench {
	t.Helper()
	xy, z := labtest.NewStage(3), labtest.NewStage(3)
	trig := labtest.NewPort(labtest.Done)
	wave := labtest.NewPort(labtest.Done)

	r, err := rig.New(rig.Devices{
		Stages: map[string]*labctl.MotionController{
			"xy": xy.Controller(),
			"z":  z.Controller(),
		},
		Trigger: labctl.NewTriggerController(trig.Transport(), labctl.DefaultTriggerConfig(), zerolog.Nop()),
		Waveforms: map[int]*labctl.WaveformController{
			0: labctl.NewWaveformController(wave.Transport(), labctl.DefaultWaveformConfig(), zerolog.Nop()),
		},
	}, []rig.ChannelConfig{
		{ID: 1, Stage: "z", Axis: 1},
		{ID: 2, Stage: "xy", Axis: 1},
		{ID: 3, Stage: "xy", Axis: 2},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("rig.New failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	srv := NewServer(r, WithStatusInterval(10*time.Millisecond))
	return &testBench{rig: r, xy: xy, z: z, trigger: trig, wave: wave, handler: srv.Routes()}
}

func (b *testBench) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	return rec
}

func (b *testBench) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return b.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func upload(t *testing.T, path, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "table.txt")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIndex(t *testing.T) {
	b := newTestBench(t)
	rec := b.get(t, "/")
	if rec.Code != http.StatusOK || rec.Body.String() != "Server up." {
		t.Errorf("Expected 200 Server up., got %d %q", rec.Code, rec.Body.String())
	}
}

func TestGamepadToggle(t *testing.T) {
	b := newTestBench(t)

	if rec := b.get(t, "/disable_gamepad"); rec.Body.String() != "Done." {
		t.Errorf("Expected Done., got %q", rec.Body.String())
	}
	if b.rig.GamepadEnabled() {
		t.Error("Expected gamepad disabled")
	}
	b.get(t, "/enable_gamepad")
	if !b.rig.GamepadEnabled() {
		t.Error("Expected gamepad enabled")
	}
}

func TestTrigger(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		frame string
	}{
		{"Default", "/trigger", "TAYN1000\r"},
		{"AllChannels", "/trigger/All/5/No/Yes", "TANY5\r"},
		{"SingleChannel", "/trigger/2/250/Yes/No", "T2YN250\r"},
		{"NoFlags", "/trigger/A/1/N/N", "TANN1\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBench(t)
			rec := b.get(t, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"done":true`) {
				t.Errorf("Expected done true, got %s", rec.Body.String())
			}
			if frames := b.trigger.Frames(); !reflect.DeepEqual(frames, []string{tt.frame}) {
				t.Errorf("Expected %q, got %q", tt.frame, frames)
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		path   string
		status int
	}{
		{"/trigger/B/5/N/N", http.StatusBadRequest},
		{"/trigger/-1/5/N/N", http.StatusBadRequest},
		{"/trigger/1/many/N/N", http.StatusBadRequest},
		{"/trigger/1/0/N/N", http.StatusBadRequest},
		{"/move/x/1.0", http.StatusBadRequest},
		{"/move/2/far", http.StatusBadRequest},
		{"/move/9/1.0", http.StatusNotFound},
		{"/velocity/9/1.0", http.StatusNotFound},
		{"/reset_galvo/7", http.StatusNotFound},
		{"/nothing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			b := newTestBench(t)
			rec := b.get(t, tt.path)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestErrorBody(t *testing.T) {
	b := newTestBench(t)
	rec := b.get(t, "/move/9/1.0")

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got %q", rec.Body.String())
	}
	if !strings.Contains(body["error"], "unknown channel") {
		t.Errorf("Expected unknown channel error, got %q", body["error"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{labctl.ErrInvalidArgument, http.StatusBadRequest},
		{&labctl.ParseError{Index: 1, Token: "G1"}, http.StatusBadRequest},
		{fmt.Errorf("channel 4: %w", rig.ErrUnknownChannel), http.StatusNotFound},
		{labctl.ErrDeviceTimeout, http.StatusGatewayTimeout},
		{&labctl.ProtocolError{Command: "TP", Reply: []byte("?")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.status {
			t.Errorf("statusFor(%v): expected %d, got %d", tt.err, tt.status, got)
		}
	}
}

func TestMoveAndPositions(t *testing.T) {
	b := newTestBench(t)

	if rec := b.get(t, "/move/3/12.5"); rec.Body.String() != "Done." {
		t.Fatalf("Expected Done., got %d %q", rec.Code, rec.Body.String())
	}

	rec := b.get(t, "/get_positions")
	var pos map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &pos); err != nil {
		t.Fatalf("Bad JSON %q: %v", rec.Body.String(), err)
	}
	expected := map[string]float64{"1": 0, "2": 0, "3": 12.5}
	if !reflect.DeepEqual(pos, expected) {
		t.Errorf("Expected %v, got %v", expected, pos)
	}
}

func TestVelocity(t *testing.T) {
	b := newTestBench(t)
	b.get(t, "/velocity/1/0.4")

	if frames := b.z.Port.Frames(); !reflect.DeepEqual(frames, []string{"1VA0.4\n"}) {
		t.Errorf("Expected 1VA0.4, got %q", frames)
	}
}

func TestMovingRoutes(t *testing.T) {
	b := newTestBench(t)
	b.xy.SetMoving(0b001)

	rec := b.get(t, "/is_moving")
	if !strings.Contains(rec.Body.String(), `"is_moving":true`) {
		t.Errorf("Expected is_moving true, got %s", rec.Body.String())
	}

	rec = b.get(t, "/get_is_moving")
	var moving map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &moving); err != nil {
		t.Fatalf("Bad JSON %q: %v", rec.Body.String(), err)
	}
	expected := map[string]bool{"1": false, "2": true, "3": false}
	if !reflect.DeepEqual(moving, expected) {
		t.Errorf("Expected %v, got %v", expected, moving)
	}
}

func TestEmergencyStop(t *testing.T) {
	b := newTestBench(t)
	if rec := b.get(t, "/emergency_stop"); rec.Body.String() != "Done." {
		t.Errorf("Expected Done., got %q", rec.Body.String())
	}
	if len(b.xy.Port.Frames()) != 1 || len(b.z.Port.Frames()) != 1 {
		t.Error("Expected one abort frame per stage")
	}
}

func TestResetGalvo(t *testing.T) {
	b := newTestBench(t)
	if rec := b.get(t, "/reset_galvo/0"); rec.Body.String() != "Done." {
		t.Errorf("Expected Done., got %d %q", rec.Code, rec.Body.String())
	}
	if frames := b.wave.Frames(); len(frames) != 1 || frames[0] != "R" {
		t.Errorf("Expected reset frame, got %q", frames)
	}
}

func TestUploadWaveTable(t *testing.T) {
	b := newTestBench(t)

	rec := b.do(t, upload(t, "/upload_wavetable/0", "0A,0B,0C"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"samples":3`) {
		t.Errorf("Expected 3 samples, got %s", rec.Body.String())
	}
	if len(b.wave.Frames()) == 0 {
		t.Error("Expected table upload frames")
	}
}

func TestUploadWaveTableBadContent(t *testing.T) {
	b := newTestBench(t)

	rec := b.do(t, upload(t, "/upload_wavetable/0", "0A,G1"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if len(b.wave.Frames()) != 0 {
		t.Errorf("Expected nothing written, got %q", b.wave.Frames())
	}
}

func TestUploadGateTable(t *testing.T) {
	b := newTestBench(t)

	rec := b.do(t, upload(t, "/upload_aotf/0", "YYNNY"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"samples":5`) {
		t.Errorf("Expected 5 samples, got %s", rec.Body.String())
	}
}

func TestUploadWithoutFile(t *testing.T) {
	b := newTestBench(t)

	req := httptest.NewRequest(http.MethodPost, "/upload_aotf/0", strings.NewReader(""))
	if rec := b.do(t, req); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestStatusStream(t *testing.T) {
	b := newTestBench(t)
	b.z.SetMoving(0b001)
	ts := httptest.NewServer(b.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var snap rig.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if len(snap.Positions) != 3 || !snap.Moving[1] || snap.Moving[2] {
			t.Errorf("Unexpected snapshot %+v", snap)
		}
	}
}
