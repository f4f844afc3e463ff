package models

import (
	"context"
	"sync"

	"github.com/allbin/labctl/internal/rig"
)

// InputMode tells keyboard jogging from typing into the move prompt
type InputMode int

const (
	InputModeJog InputMode = iota
	InputModeGoto
)

func (m InputMode) String() string {
	switch m {
	case InputModeGoto:
		return "GOTO"
	default:
		return "JOG"
	}
}

// SnapshotMsg carries the result of a periodic rig poll
type SnapshotMsg struct {
	Snapshot rig.Snapshot
	Err      error
}

// CommandDoneMsg reports a finished device command
type CommandDoneMsg struct {
	Label string
	Err   error
}

// State is the part of the console model shared with background commands
type State struct {
	ready     bool
	inputMode InputMode
	lastErr   error

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

func NewState(parent context.Context) *State {
	ctx, cancel := context.WithCancel(parent)
	return &State{ctx: ctx, cancel: cancel}
}

func (s *State) IsReady() bool {
	return s.ready
}

func (s *State) SetReady(ready bool) {
	s.ready = ready
}

func (s *State) GetError() error {
	return s.lastErr
}

func (s *State) SetError(err error) {
	s.lastErr = err
}

func (s *State) GetInputMode() InputMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputMode
}

func (s *State) SetInputMode(mode InputMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputMode = mode
}

func (s *State) InGotoMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputMode == InputModeGoto
}

// Context is cancelled when the console quits
func (s *State) Context() context.Context {
	return s.ctx
}

func (s *State) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}
