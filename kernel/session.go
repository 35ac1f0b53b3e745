package kernel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/r-wasm/jupyterlite-webr-kernel/protocol"
	"github.com/r-wasm/jupyterlite-webr-kernel/runtime"
)

// State is the session lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateStarting      State = "starting"
	StateIdle          State = "idle"
	StateBusy          State = "busy"
	StateDisposed      State = "disposed"
)

// sessionState groups the per-session mutable fields the Execution
// Coordinator works on: the execution counter, the plot change-detection
// record, and the last-seen request header used to parent asynchronous
// status broadcasts.
type sessionState struct {
	execCount  int
	plot       plotState
	lastParent *protocol.Header
}

// Session is the outward-facing kernel entity. It owns the interpreter
// handle, dispatches inbound messages by kind, and serializes the execute
// lane so at most one request is in flight.
type Session struct {
	id     string
	cfg    config
	interp runtime.Interpreter
	sender protocol.Sender
	differ *plotDiffer
	log    zerolog.Logger

	mu                sync.Mutex
	state             State
	st                sessionState
	promptOutstanding bool
	observers         []func()
	startErr          error
	fatal             error

	startDone  chan struct{}
	disposedCh chan struct{}

	// execMu is the serialized execute lane: a second execute_request
	// blocks here until the prior request's idle status has gone out.
	execMu sync.Mutex
}

// NewSession builds a session around an interpreter and an outbound sender.
// Call Start before handling messages.
func NewSession(interp runtime.Interpreter, sender protocol.Sender, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		interp:     interp,
		sender:     sender,
		log:        cfg.log,
		state:      StateUninitialized,
		startDone:  make(chan struct{}),
		disposedCh: make(chan struct{}),
	}
	s.differ = newPlotDiffer(interp, cfg.plotWidth, cfg.plotHeight, cfg.plotDPI, cfg.log)
	interp.OnInputRequest(s.handleInputRequest)
	return s
}

// ID returns the session's opaque identity.
func (s *Session) ID() string { return s.id }

// Name returns the session's human-readable name.
func (s *Session) Name() string { return s.cfg.name }

// Location returns the session's placement tag.
func (s *Session) Location() string { return s.cfg.location }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExecutionCount returns the current execution counter.
func (s *Session) ExecutionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.execCount
}

// Start broadcasts the one-time starting status and initializes the
// interpreter, blocking until it is ready. On failure the session stays in
// StateStarting and requests are rejected with ErrNotReady.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return ErrSessionDisposed
	}
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	s.publishStatus(protocol.StateStarting, nil)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.startTimeout)
	defer cancel()

	err := s.interp.Init(ctx)

	s.mu.Lock()
	if err != nil {
		s.startErr = err
	} else if s.state == StateStarting {
		s.state = StateIdle
	}
	s.mu.Unlock()
	close(s.startDone)

	if err != nil {
		s.log.Error().Err(err).Msg("interpreter init failed")
		return fmt.Errorf("start session: %w", err)
	}
	s.log.Info().Str("session", s.id).Msg("interpreter ready")
	return nil
}

// HandleMessage dispatches one inbound message by kind. Unknown kinds are
// logged and dropped; deliberately unimplemented kinds return
// ErrNotSupported so callers can surface an explicit failure instead of
// hanging the front-end. Messages arriving before Start has resolved are
// held until interpreter readiness is known rather than dropped.
func (s *Session) HandleMessage(ctx context.Context, msg *protocol.Message) error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return ErrSessionDisposed
	}
	if s.fatal != nil {
		err := s.fatal
		s.mu.Unlock()
		return err
	}
	switch msg.Header.MsgType {
	case protocol.MsgExecuteRequest, protocol.MsgKernelInfoRequest:
		h := msg.Header
		s.st.lastParent = &h
	}
	s.mu.Unlock()

	switch msg.Header.MsgType {
	case protocol.MsgExecuteRequest:
		var req protocol.ExecuteRequest
		if err := msg.DecodeContent(&req); err != nil {
			return fmt.Errorf("decode execute_request: %w", err)
		}
		s.execMu.Lock()
		defer s.execMu.Unlock()
		c := &coordinator{s: s, st: &s.st}
		return c.execute(ctx, &msg.Header, req)

	case protocol.MsgKernelInfoRequest:
		return s.handleKernelInfo(ctx, &msg.Header)

	case protocol.MsgInputReply:
		return s.handleInputReply(ctx, msg)

	case protocol.MsgCompleteRequest, protocol.MsgInspectRequest,
		protocol.MsgIsCompleteRequest, protocol.MsgCommOpen,
		protocol.MsgCommMsg, protocol.MsgCommClose:
		s.log.Warn().Str("msg_type", msg.Header.MsgType).Msg("rejecting unsupported message kind")
		return fmt.Errorf("%s: %w", msg.Header.MsgType, ErrNotSupported)

	default:
		s.log.Debug().Str("msg_type", msg.Header.MsgType).Msg("dropping unrecognized message kind")
		return nil
	}
}

// handleKernelInfo replies with the static capability descriptor. The reply
// is deferred until interpreter readiness resolves.
func (s *Session) handleKernelInfo(ctx context.Context, parent *protocol.Header) error {
	s.setState(StateBusy)
	s.publishStatus(protocol.StateBusy, parent)
	defer func() {
		s.publishStatus(protocol.StateIdle, parent)
		s.setState(StateIdle)
	}()

	if err := s.awaitReady(ctx); err != nil {
		return err
	}

	s.send(parent, protocol.MsgKernelInfoReply, protocol.ChannelShell, kernelInfo())
	return nil
}

// handleInputReply forwards a front-end input value to the interpreter's
// pending prompt. A reply with no prompt outstanding is protocol misuse and
// is dropped.
func (s *Session) handleInputReply(ctx context.Context, msg *protocol.Message) error {
	var reply protocol.InputReply
	if err := msg.DecodeContent(&reply); err != nil {
		return fmt.Errorf("decode input_reply: %w", err)
	}

	s.mu.Lock()
	outstanding := s.promptOutstanding
	s.promptOutstanding = false
	s.mu.Unlock()

	if !outstanding {
		s.log.Warn().Msg("input_reply with no outstanding prompt, dropping")
		return nil
	}
	return s.interp.RespondInput(ctx, reply.Value)
}

// handleInputRequest is invoked by the interpreter when evaluation prompts
// for input. The request is parented to the execute request being served.
func (s *Session) handleInputRequest(prompt string, password bool) {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	parent := s.st.lastParent
	s.promptOutstanding = true
	s.mu.Unlock()

	s.send(parent, protocol.MsgInputRequest, protocol.ChannelStdin, protocol.InputRequest{
		Prompt:   prompt,
		Password: password,
	})
}

// awaitReady blocks until Start has completed, then reports its outcome.
func (s *Session) awaitReady(ctx context.Context) error {
	select {
	case <-s.startDone:
	case <-s.disposedCh:
		return ErrSessionDisposed
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	err := s.startErr
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

// OnDisposed registers fn to run when the session is disposed. Registration
// after disposal runs fn immediately.
func (s *Session) OnDisposed(fn func()) {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		fn()
		return
	}
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Disposed returns a channel closed when the session is disposed.
func (s *Session) Disposed() <-chan struct{} {
	return s.disposedCh
}

// Dispose tears the session down: terminal, idempotent. All further message
// handling is a no-op and the interpreter handle is released.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	s.state = StateDisposed
	observers := s.observers
	s.observers = nil
	s.mu.Unlock()

	close(s.disposedCh)
	if err := s.interp.Close(); err != nil {
		s.log.Error().Err(err).Msg("interpreter close failed")
	}
	for _, fn := range observers {
		fn()
	}
	s.log.Info().Str("session", s.id).Msg("session disposed")
}

// send builds an outbound message causally linked to parent and hands it to
// the sender. Send failures are logged, never fatal to the lane.
func (s *Session) send(parent *protocol.Header, msgType string, channel protocol.Channel, content any) {
	msg := protocol.ChildOf(parent, msgType, s.id, s.cfg.username, channel, content)
	if err := s.sender.Send(msg); err != nil {
		s.log.Error().Err(err).Str("msg_type", msgType).Msg("send failed")
	}
}

// publishStatus broadcasts an execution state on iopub. With a nil parent
// the status links to the last-seen request header, or goes out unlinked if
// no request has arrived yet.
func (s *Session) publishStatus(state string, parent *protocol.Header) {
	if parent == nil {
		s.mu.Lock()
		parent = s.st.lastParent
		s.mu.Unlock()
	}
	s.send(parent, protocol.MsgStatus, protocol.ChannelIOPub, protocol.Status{ExecutionState: state})
}

// setState transitions the lifecycle state. Disposed is terminal, only
// Start may leave StateUninitialized, and a session whose interpreter
// failed to initialize stays in StateStarting.
func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.state != StateDisposed && s.state != StateUninitialized && s.startErr == nil {
		s.state = state
	}
	s.mu.Unlock()
}
