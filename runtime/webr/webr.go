// Package webr hosts the webR build of the R interpreter inside a wazero
// WebAssembly runtime and implements the runtime.Interpreter contract on top
// of a JSON line protocol over the module's piped stdio.
package webr

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/r-wasm/jupyterlite-webr-kernel/runtime"
)

// The webR WASI build, fetched into place by internal/tools/download.
//
//go:embed webr.wasm
var wasmModule []byte

//go:embed support.R
var supportScript string

var (
	ErrClosed     = errors.New("interpreter closed")
	ErrNotStarted = errors.New("interpreter not started")
	ErrNoPrompt   = errors.New("no input prompt outstanding")
)

type config struct {
	startTimeout     time.Duration
	memoryLimitPages uint32
	env              map[string]string
}

func defaultConfig() config {
	return config{
		startTimeout: 60 * time.Second,
		env:          make(map[string]string),
	}
}

// Option configures the interpreter at creation time.
type Option func(*config)

// WithStartTimeout bounds how long Init waits for the interpreter's ready
// signal. webR cold starts are slow; the default is generous.
func WithStartTimeout(d time.Duration) Option {
	return func(c *config) {
		c.startTimeout = d
	}
}

// WithMemoryLimit sets the maximum memory available to the module, in 64KB
// pages. Zero means the wazero default.
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithEnv sets an environment variable inside the module.
func WithEnv(key, value string) Option {
	return func(c *config) {
		c.env[key] = value
	}
}

// Interpreter drives one webR instance. It satisfies runtime.Interpreter.
type Interpreter struct {
	cfg  config
	wire *wireHandler

	rt          wazero.Runtime
	module      api.Module
	stdin       *io.PipeWriter
	stdinReader *io.PipeReader

	nextID  atomic.Uint64
	writeMu sync.Mutex

	mu       sync.Mutex
	started  bool
	closed   bool
	startErr error
}

// New creates an interpreter. No resources are acquired until Init.
func New(opts ...Option) *Interpreter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Interpreter{
		cfg:  cfg,
		wire: newWireHandler(),
	}
}

// OnInputRequest registers the handler invoked when R prompts for input
// mid-evaluation. Must be called before Init.
func (i *Interpreter) OnInputRequest(fn runtime.InputHandler) {
	i.wire.setInputHandler(fn)
}

// Init compiles and instantiates the webR module, then blocks until the
// support script reports readiness or the start timeout elapses.
func (i *Interpreter) Init(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}
	if i.started {
		return nil
	}
	if i.startErr != nil {
		return i.startErr
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if i.cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(i.cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(context.Background(), rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(context.Background(), rt); err != nil {
		rt.Close(context.Background())
		i.startErr = fmt.Errorf("instantiate WASI: %w", err)
		return i.startErr
	}
	i.rt = rt

	compiled, err := rt.CompileModule(ctx, wasmModule)
	if err != nil {
		rt.Close(context.Background())
		i.rt = nil
		i.startErr = fmt.Errorf("compile webr module: %w", err)
		return i.startErr
	}

	i.stdinReader, i.stdin = io.Pipe()

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(i.wire.stdout()).
		WithStderr(i.wire.stderr()).
		WithStdin(i.stdinReader).
		WithArgs("R", "--quiet", "--no-save", "-e", supportScript).
		WithName("")

	for k, v := range i.cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	// Instantiation failures are delivered on a channel so Init reports
	// them as soon as they happen instead of waiting out the start
	// timeout. InstantiateModule only returns early when the program
	// cannot run or exits; in steady state it blocks until shutdown.
	instErr := make(chan error, 1)
	go func() {
		mod, err := i.rt.InstantiateModule(context.Background(), compiled, moduleConfig)
		if err != nil {
			instErr <- fmt.Errorf("start interpreter: %w", err)
			return
		}
		select {
		case instErr <- errors.New("interpreter exited before ready"):
		default:
		}
		i.mu.Lock()
		i.module = mod
		i.mu.Unlock()
	}()

	if err := awaitStart(ctx, i.wire.Ready(), instErr, i.cfg.startTimeout); err != nil {
		i.startErr = err
		return i.startErr
	}
	i.started = true
	return nil
}

// awaitStart resolves whichever comes first: the support script's ready
// signal, an instantiation failure, cancellation, or the start timeout.
func awaitStart(ctx context.Context, ready <-chan struct{}, instErr <-chan error, timeout time.Duration) error {
	select {
	case <-ready:
		return nil
	case err := <-instErr:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return errors.New("interpreter start timeout")
	}
}

type evalData struct {
	Visible bool   `json:"visible"`
	Value   string `json:"value"`
}

// Eval submits code for top-level evaluation and collects the captured
// output items in production order.
func (i *Interpreter) Eval(ctx context.Context, code string) (*runtime.EvalResult, error) {
	data, err := i.call(ctx, "eval", map[string]any{"code": code})
	items := i.wire.takeItems()
	if err != nil {
		return &runtime.EvalResult{Items: items}, err
	}

	var d evalData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &d); err != nil {
			return &runtime.EvalResult{Items: items}, fmt.Errorf("decode eval result: %w", err)
		}
	}

	return &runtime.EvalResult{
		Items:   items,
		Visible: d.Visible,
		Value:   d.Value,
	}, nil
}

// shelter is a handle to an R-side object arena.
type shelter struct {
	interp *Interpreter
	id     string

	mu       sync.Mutex
	released bool
}

func (s *shelter) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true

	_, err := s.interp.call(ctx, "shelter_release", map[string]any{"shelter": s.id})
	if err != nil {
		return fmt.Errorf("release shelter %s: %w", s.id, err)
	}
	return nil
}

// NewShelter acquires a fresh R-side arena for transient results.
func (i *Interpreter) NewShelter(ctx context.Context) (runtime.Shelter, error) {
	data, err := i.call(ctx, "shelter_new", nil)
	if err != nil {
		return nil, err
	}
	var d struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode shelter id: %w", err)
	}
	return &shelter{interp: i, id: d.ID}, nil
}

// DeviceState reports the active graphics device and the new-plot flag.
func (i *Interpreter) DeviceState(ctx context.Context) (runtime.DeviceState, error) {
	data, err := i.call(ctx, "device_state", nil)
	if err != nil {
		return runtime.DeviceState{}, err
	}
	var d struct {
		Device  int  `json:"device"`
		NewPlot bool `json:"new_plot"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return runtime.DeviceState{}, fmt.Errorf("decode device state: %w", err)
	}
	return runtime.DeviceState{Device: d.Device, NewPlot: d.NewPlot}, nil
}

// RenderDevice rasterizes the active device at the given pixel size. The
// support script duplicates the device to an off-screen canvas, copies its
// contents, and closes the duplicate, leaving the original active.
func (i *Interpreter) RenderDevice(ctx context.Context, width, height int) ([]byte, error) {
	data, err := i.call(ctx, "render", map[string]any{"width": width, "height": height})
	if err != nil {
		return nil, err
	}
	var d struct {
		PNG string `json:"png"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode render result: %w", err)
	}
	png, err := base64.StdEncoding.DecodeString(d.PNG)
	if err != nil {
		return nil, fmt.Errorf("decode rendered image: %w", err)
	}
	return png, nil
}

// ClearNewPlot resets the device-side new-plot flag.
func (i *Interpreter) ClearNewPlot(ctx context.Context) error {
	_, err := i.call(ctx, "clear_new_plot", nil)
	return err
}

// ReadFile reads a file from the module's virtual filesystem.
func (i *Interpreter) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := i.call(ctx, "read_file", map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	var d struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode file data: %w", err)
	}
	content, err := base64.StdEncoding.DecodeString(d.Data)
	if err != nil {
		return nil, fmt.Errorf("decode file data: %w", err)
	}
	return content, nil
}

// RespondInput completes the pending input prompt raised during evaluation.
func (i *Interpreter) RespondInput(ctx context.Context, value string) error {
	if !i.wire.takeInputPending() {
		return ErrNoPrompt
	}
	return i.write(map[string]any{"op": "input", "value": value})
}

// call issues one request on stdin and waits for its correlated result
// frame on stderr.
func (i *Interpreter) call(ctx context.Context, op string, args map[string]any) (json.RawMessage, error) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil, ErrClosed
	}
	if !i.started {
		err := i.startErr
		i.mu.Unlock()
		if err == nil {
			err = ErrNotStarted
		}
		return nil, err
	}
	i.mu.Unlock()

	id := i.nextID.Add(1)
	ch := i.wire.expect(id)

	req := map[string]any{"op": op, "id": id}
	for k, v := range args {
		req[k] = v
	}

	if err := i.write(req); err != nil {
		i.wire.forget(id)
		return nil, err
	}

	select {
	case <-ctx.Done():
		i.wire.forget(id)
		return nil, ctx.Err()
	case reply := <-ch:
		if reply.err != "" {
			return nil, errors.New(reply.err)
		}
		return reply.data, nil
	}
}

func (i *Interpreter) write(req map[string]any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	data = append(data, '\n')

	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	if _, err := i.stdin.Write(data); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// Close shuts the module down. Closing the stdin pipe makes R receive EOF
// and exit; the module is closed afterwards in case it is blocked.
func (i *Interpreter) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true

	if i.stdinReader != nil {
		i.stdinReader.Close()
	}
	if i.stdin != nil {
		i.stdin.Close()
	}
	if i.module != nil {
		i.module.Close(context.Background())
	}
	if i.rt != nil {
		i.rt.Close(context.Background())
	}
	return nil
}
