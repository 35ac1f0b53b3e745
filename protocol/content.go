package protocol

// Execution states carried by status messages.
const (
	StateStarting = "starting"
	StateBusy     = "busy"
	StateIdle     = "idle"
)

// Stream channel names.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// ExecuteRequest asks the kernel to evaluate a block of code.
type ExecuteRequest struct {
	Code            string         `json:"code"`
	Silent          bool           `json:"silent"`
	StoreHistory    *bool          `json:"store_history,omitempty"`
	UserExpressions map[string]any `json:"user_expressions,omitempty"`
	AllowStdin      bool           `json:"allow_stdin"`
	StopOnError     bool           `json:"stop_on_error"`
}

// ShouldStoreHistory resolves the store_history flag with the protocol
// default: true unless the request is silent.
func (r ExecuteRequest) ShouldStoreHistory() bool {
	if r.StoreHistory != nil {
		return *r.StoreHistory
	}
	return !r.Silent
}

// ExecuteReply reports the outcome of an execute_request. Ename, Evalue and
// Traceback are set only when Status is "error".
type ExecuteReply struct {
	Status          string         `json:"status"`
	ExecutionCount  int            `json:"execution_count"`
	UserExpressions map[string]any `json:"user_expressions"`
	Ename           string         `json:"ename,omitempty"`
	Evalue          string         `json:"evalue,omitempty"`
	Traceback       []string       `json:"traceback,omitempty"`
}

// Stream carries a chunk of stdout or stderr text.
type Stream struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// DisplayData carries a mime-typed payload, such as a rendered plot.
type DisplayData struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

// ExecuteResult carries the printed rendering of the final visible value.
type ExecuteResult struct {
	ExecutionCount int            `json:"execution_count"`
	Data           map[string]any `json:"data"`
	Metadata       map[string]any `json:"metadata"`
}

// Status broadcasts the kernel's execution state on iopub.
type Status struct {
	ExecutionState string `json:"execution_state"`
}

// LanguageInfo describes the kernel's language for the front-end.
type LanguageInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Mimetype      string `json:"mimetype"`
	FileExtension string `json:"file_extension"`
}

// HelpLink is one entry in the front-end's help menu.
type HelpLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// KernelInfoReply is the static capability descriptor.
type KernelInfoReply struct {
	Status                string       `json:"status"`
	ProtocolVersion       string       `json:"protocol_version"`
	Implementation        string       `json:"implementation"`
	ImplementationVersion string       `json:"implementation_version"`
	LanguageInfo          LanguageInfo `json:"language_info"`
	Banner                string       `json:"banner"`
	HelpLinks             []HelpLink   `json:"help_links"`
}

// InputRequest asks the front-end for a line of user input.
type InputRequest struct {
	Prompt   string `json:"prompt"`
	Password bool   `json:"password"`
}

// InputReply answers an outstanding InputRequest.
type InputReply struct {
	Value string `json:"value"`
}
