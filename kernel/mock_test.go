package kernel

import (
	"context"
	"errors"
	"sync"

	"github.com/r-wasm/jupyterlite-webr-kernel/protocol"
	"github.com/r-wasm/jupyterlite-webr-kernel/runtime"
)

// evalStep scripts one Eval call on the mock interpreter.
type evalStep struct {
	res *runtime.EvalResult
	err error
}

// mockInterpreter implements runtime.Interpreter for coordinator and
// session tests without the cost of a real wasm instance.
type mockInterpreter struct {
	mu sync.Mutex

	initErr error

	steps       []evalStep
	defaultRes  *runtime.EvalResult
	evalCodes   []string
	device      runtime.DeviceState
	deviceErr   error
	renderBytes []byte
	renderErr   error
	clearErr    error

	shelterErr      error
	releaseErr      error
	shelterReleases int

	inputFn       runtime.InputHandler
	respondValues []string
	respondErr    error

	closed bool
}

func newMockInterpreter() *mockInterpreter {
	return &mockInterpreter{
		defaultRes:  &runtime.EvalResult{},
		renderBytes: []byte("png-bytes"),
	}
}

func (m *mockInterpreter) Init(ctx context.Context) error {
	return m.initErr
}

func (m *mockInterpreter) Eval(ctx context.Context, code string) (*runtime.EvalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evalCodes = append(m.evalCodes, code)
	if len(m.steps) > 0 {
		step := m.steps[0]
		m.steps = m.steps[1:]
		return step.res, step.err
	}
	return m.defaultRes, nil
}

// queueEval scripts the next Eval call.
func (m *mockInterpreter) queueEval(res *runtime.EvalResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, evalStep{res: res, err: err})
}

type mockShelter struct {
	m *mockInterpreter
}

func (s *mockShelter) Release(ctx context.Context) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.releaseErr != nil {
		return s.m.releaseErr
	}
	s.m.shelterReleases++
	return nil
}

func (m *mockInterpreter) NewShelter(ctx context.Context) (runtime.Shelter, error) {
	if m.shelterErr != nil {
		return nil, m.shelterErr
	}
	return &mockShelter{m: m}, nil
}

func (m *mockInterpreter) releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shelterReleases
}

func (m *mockInterpreter) DeviceState(ctx context.Context) (runtime.DeviceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device, m.deviceErr
}

func (m *mockInterpreter) setDevice(device int, newPlot bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device = runtime.DeviceState{Device: device, NewPlot: newPlot}
}

func (m *mockInterpreter) RenderDevice(ctx context.Context, width, height int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renderErr != nil {
		return nil, m.renderErr
	}
	return m.renderBytes, nil
}

func (m *mockInterpreter) setRender(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderBytes = data
}

func (m *mockInterpreter) ClearNewPlot(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.device.NewPlot = false
	return nil
}

func (m *mockInterpreter) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (m *mockInterpreter) OnInputRequest(fn runtime.InputHandler) {
	m.inputFn = fn
}

func (m *mockInterpreter) RespondInput(ctx context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.respondErr != nil {
		return m.respondErr
	}
	m.respondValues = append(m.respondValues, value)
	return nil
}

func (m *mockInterpreter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// recordSender captures outbound messages in emission order.
type recordSender struct {
	mu   sync.Mutex
	msgs []*protocol.Message
	err  error
}

func (r *recordSender) Send(m *protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordSender) all() []*protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*protocol.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *recordSender) byKind(msgType string) []*protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*protocol.Message
	for _, m := range r.msgs {
		if m.Header.MsgType == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (r *recordSender) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Header.MsgType
	}
	return out
}

func (r *recordSender) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}
