package kernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/r-wasm/jupyterlite-webr-kernel/protocol"
	"github.com/r-wasm/jupyterlite-webr-kernel/runtime"
)

func TestSessionStartPublishesStarting(t *testing.T) {
	m := newMockInterpreter()
	sender := &recordSender{}
	s := NewSession(m, sender)

	if s.State() != StateUninitialized {
		t.Fatalf("state = %q, want uninitialized", s.State())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %q, want idle", s.State())
	}

	msgs := sender.all()
	if len(msgs) != 1 {
		t.Fatalf("message count = %d, want 1", len(msgs))
	}
	var status protocol.Status
	if err := msgs[0].DecodeContent(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.ExecutionState != protocol.StateStarting {
		t.Errorf("status = %q, want starting", status.ExecutionState)
	}
	if msgs[0].ParentHeader != nil {
		t.Error("pre-request starting status must be unlinked")
	}
}

func TestMessageBeforeStartDeferred(t *testing.T) {
	m := newMockInterpreter()
	sender := &recordSender{}
	s := NewSession(m, sender)

	// A request racing ahead of Start must block on readiness, not be
	// bounced with a not-ready error.
	done := make(chan error, 1)
	msg := protocol.NewMessage(protocol.MsgKernelInfoRequest, "client", "tester", protocol.ChannelShell, nil)
	go func() {
		done <- s.HandleMessage(context.Background(), msg)
	}()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("handle failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("deferred request never completed")
	}

	if replies := sender.byKind(protocol.MsgKernelInfoReply); len(replies) != 1 {
		t.Fatalf("reply count = %d, want 1", len(replies))
	}
}

func TestKernelInfo(t *testing.T) {
	m := newMockInterpreter()
	s, sender := newTestSession(t, m)

	msg := protocol.NewMessage(protocol.MsgKernelInfoRequest, "client", "tester", protocol.ChannelShell, nil)
	if err := s.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	replies := sender.byKind(protocol.MsgKernelInfoReply)
	if len(replies) != 1 {
		t.Fatalf("reply count = %d, want 1", len(replies))
	}
	var info protocol.KernelInfoReply
	if err := replies[0].DecodeContent(&info); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if info.ProtocolVersion != protocol.Version {
		t.Errorf("protocol version = %q, want %q", info.ProtocolVersion, protocol.Version)
	}
	if info.Implementation != "webr" {
		t.Errorf("implementation = %q, want webr", info.Implementation)
	}
	if info.LanguageInfo.Name != "R" {
		t.Errorf("language = %q, want R", info.LanguageInfo.Name)
	}
	if info.Banner == "" {
		t.Error("banner must not be empty")
	}

	kinds := sender.kinds()
	if kinds[len(kinds)-1] != protocol.MsgStatus {
		t.Error("kernel info must be followed by an idle status")
	}
}

func TestUnsupportedKindsRejected(t *testing.T) {
	m := newMockInterpreter()
	s, sender := newTestSession(t, m)

	for _, kind := range []string{
		protocol.MsgCompleteRequest,
		protocol.MsgInspectRequest,
		protocol.MsgIsCompleteRequest,
		protocol.MsgCommOpen,
		protocol.MsgCommMsg,
		protocol.MsgCommClose,
	} {
		msg := protocol.NewMessage(kind, "client", "tester", protocol.ChannelShell, nil)
		err := s.HandleMessage(context.Background(), msg)
		if !errors.Is(err, ErrNotSupported) {
			t.Errorf("%s: got %v, want ErrNotSupported", kind, err)
		}
	}
	if len(sender.all()) != 0 {
		t.Error("rejected kinds must not emit messages")
	}
}

func TestUnrecognizedKindDropped(t *testing.T) {
	m := newMockInterpreter()
	s, sender := newTestSession(t, m)

	msg := protocol.NewMessage("history_request", "client", "tester", protocol.ChannelShell, nil)
	if err := s.HandleMessage(context.Background(), msg); err != nil {
		t.Errorf("unrecognized kind must be dropped silently, got %v", err)
	}
	if len(sender.all()) != 0 {
		t.Error("dropped kinds must not emit messages")
	}
}

func TestDisposeIdempotent(t *testing.T) {
	m := newMockInterpreter()
	s, _ := newTestSession(t, m)

	calls := 0
	s.OnDisposed(func() { calls++ })

	s.Dispose()
	s.Dispose()

	if calls != 1 {
		t.Errorf("observer ran %d times, want 1", calls)
	}
	if !m.closed {
		t.Error("interpreter not closed on disposal")
	}
	if s.State() != StateDisposed {
		t.Errorf("state = %q, want disposed", s.State())
	}

	select {
	case <-s.Disposed():
	default:
		t.Error("disposal channel not closed")
	}

	err := s.HandleMessage(context.Background(), execMsg("1", true))
	if !errors.Is(err, ErrSessionDisposed) {
		t.Errorf("post-disposal handling: got %v, want ErrSessionDisposed", err)
	}
}

func TestObserverAfterDisposalRunsImmediately(t *testing.T) {
	m := newMockInterpreter()
	s, _ := newTestSession(t, m)
	s.Dispose()

	ran := false
	s.OnDisposed(func() { ran = true })
	if !ran {
		t.Error("observer registered after disposal must run immediately")
	}
}

func TestInputRoundTrip(t *testing.T) {
	m := newMockInterpreter()
	s, sender := newTestSession(t, m)

	// Seed a last-seen request so the prompt has a parent.
	m.queueEval(nil, errors.New("noop"))
	if err := s.HandleMessage(context.Background(), execMsg("readline()", true)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	sender.reset()

	// The interpreter prompts mid-evaluation.
	m.inputFn("Enter a value: ", false)

	reqs := sender.byKind(protocol.MsgInputRequest)
	if len(reqs) != 1 {
		t.Fatalf("input_request count = %d, want 1", len(reqs))
	}
	if reqs[0].Channel != protocol.ChannelStdin {
		t.Errorf("input_request channel = %q, want stdin", reqs[0].Channel)
	}
	var req protocol.InputRequest
	if err := reqs[0].DecodeContent(&req); err != nil {
		t.Fatalf("decode input_request: %v", err)
	}
	if req.Prompt != "Enter a value: " {
		t.Errorf("prompt = %q", req.Prompt)
	}

	reply := protocol.NewMessage(protocol.MsgInputReply, "client", "tester", protocol.ChannelStdin, protocol.InputReply{Value: "42"})
	if err := s.HandleMessage(context.Background(), reply); err != nil {
		t.Fatalf("input reply failed: %v", err)
	}
	if len(m.respondValues) != 1 || m.respondValues[0] != "42" {
		t.Errorf("respond values = %v, want [42]", m.respondValues)
	}
}

func TestInputReplyWithoutPromptIgnored(t *testing.T) {
	m := newMockInterpreter()
	s, _ := newTestSession(t, m)

	reply := protocol.NewMessage(protocol.MsgInputReply, "client", "tester", protocol.ChannelStdin, protocol.InputReply{Value: "stray"})
	if err := s.HandleMessage(context.Background(), reply); err != nil {
		t.Errorf("stray input_reply must be dropped, got %v", err)
	}
	if len(m.respondValues) != 0 {
		t.Errorf("interpreter must not see stray input, got %v", m.respondValues)
	}
}

func TestSerializedExecuteLane(t *testing.T) {
	m := newMockInterpreter()
	s, sender := newTestSession(t, m)

	// Two concurrent requests must not interleave their status brackets.
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		m.queueEval(&runtime.EvalResult{}, nil)
		go func() {
			defer func() { done <- struct{}{} }()
			s.HandleMessage(context.Background(), execMsg("1", true))
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("requests did not complete")
		}
	}

	depth := 0
	for _, msg := range sender.all() {
		if msg.Header.MsgType != protocol.MsgStatus {
			continue
		}
		var status protocol.Status
		if err := msg.DecodeContent(&status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		switch status.ExecutionState {
		case protocol.StateBusy:
			depth++
		case protocol.StateIdle:
			depth--
		}
		if depth > 1 {
			t.Fatal("overlapping busy brackets: execute requests ran concurrently")
		}
	}
}
