// Package runtime defines the boundary to the embedded R interpreter. The
// kernel treats the interpreter as an opaque sequential capability: at most
// one evaluation in flight, explicit operations for device state, rendering,
// and scratch-arena management. Implementations live in subpackages; tests
// substitute mocks.
package runtime

import "context"

// Output item kinds produced by an evaluation. The set is open: unknown
// kinds reach the classifier and are dropped there, never here.
const (
	ItemStdout  = "stdout"
	ItemStderr  = "stderr"
	ItemMessage = "message"
	ItemWarning = "warning"
)

// Condition is a structured R condition raised during evaluation.
type Condition struct {
	Message string `json:"message"`
	Call    string `json:"call,omitempty"`
}

// OutputItem is one captured output from an evaluation: raw text for
// stdout/stderr kinds, a structured condition for message/warning kinds.
type OutputItem struct {
	Kind      string     `json:"kind"`
	Text      string     `json:"text,omitempty"`
	Condition *Condition `json:"condition,omitempty"`
}

// ConditionMessage extracts the message field of a condition item, falling
// back to the raw text for items that arrived without structure.
func (i OutputItem) ConditionMessage() string {
	if i.Condition != nil {
		return i.Condition.Message
	}
	return i.Text
}

// EvalResult is the outcome of a successful evaluation. Value holds the
// printed rendering of the final expression and is meaningful only when
// Visible is true.
type EvalResult struct {
	Items   []OutputItem
	Visible bool
	Value   string
}

// DeviceState reports the interpreter's active graphics device. Device 0 is
// the null device: nothing has been plotted.
type DeviceState struct {
	Device  int
	NewPlot bool
}

// Shelter is a scoped arena protecting evaluation results from the
// interpreter's garbage collector. Acquired per execute-request and released
// unconditionally when the request ends.
type Shelter interface {
	Release(ctx context.Context) error
}

// InputHandler is invoked when evaluation requests a line of user input.
// The interpreter blocks until RespondInput is called.
type InputHandler func(prompt string, password bool)

// Interpreter is the embedded R runtime. All blocking operations take a
// context; implementations must be safe for the kernel's single-lane usage
// pattern (no concurrent Eval calls).
type Interpreter interface {
	// Init starts the interpreter and blocks until it is ready to
	// evaluate. Called once; evaluation before Init returns is an error.
	Init(ctx context.Context) error

	// Eval runs code with top-level REPL semantics, capturing output
	// items in production order. Implicit graphics capture is disabled;
	// plots are read explicitly through DeviceState and RenderDevice.
	Eval(ctx context.Context, code string) (*EvalResult, error)

	// NewShelter acquires a scratch arena for one execute-request.
	NewShelter(ctx context.Context) (Shelter, error)

	// DeviceState queries the active graphics device and its new-plot
	// flag.
	DeviceState(ctx context.Context) (DeviceState, error)

	// RenderDevice rasterizes the active device's current contents at
	// the given pixel size without disturbing the device, and returns
	// PNG bytes.
	RenderDevice(ctx context.Context, width, height int) ([]byte, error)

	// ClearNewPlot resets the device's new-plot flag after a plot has
	// been emitted.
	ClearNewPlot(ctx context.Context) error

	// ReadFile reads a file from the interpreter's virtual filesystem.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// OnInputRequest registers the handler for mid-evaluation input
	// prompts. Must be called before Init.
	OnInputRequest(fn InputHandler)

	// RespondInput completes the interpreter's pending input prompt.
	// Calling it with no prompt outstanding is an error.
	RespondInput(ctx context.Context, value string) error

	// Close shuts the interpreter down and releases all resources.
	// Idempotent.
	Close() error
}
