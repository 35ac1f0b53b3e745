package webr

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/r-wasm/jupyterlite-webr-kernel/runtime"
)

// Wire constants - the R-side support script frames structured replies on
// stderr as \x00WEBR:{json}\x00. Untagged stdout/stderr text is captured as
// plain output items.
const (
	framePrefix = "\x00WEBR:"
	frameSuffix = "\x00"
)

// frame is one structured message from the interpreter.
type frame struct {
	Type     string              `json:"type"`
	ID       uint64              `json:"id,omitempty"`
	Item     *runtime.OutputItem `json:"item,omitempty"`
	Data     json.RawMessage     `json:"data,omitempty"`
	Error    string              `json:"error,omitempty"`
	Prompt   string              `json:"prompt,omitempty"`
	Password bool                `json:"password,omitempty"`
}

// callReply completes one host-initiated request.
type callReply struct {
	data json.RawMessage
	err  string
}

// wireHandler splits the module's output streams into structured frames and
// plain output items. Frames may arrive split across writes; incomplete
// frames stay buffered until the closing sentinel arrives.
type wireHandler struct {
	mu sync.Mutex

	buf   bytes.Buffer
	lines map[string]*bytes.Buffer

	items   []runtime.OutputItem
	pending map[uint64]chan callReply

	readyCh chan struct{}
	ready   bool

	inputPending bool
	onInput      runtime.InputHandler
}

func newWireHandler() *wireHandler {
	return &wireHandler{
		lines:   make(map[string]*bytes.Buffer),
		pending: make(map[uint64]chan callReply),
		readyCh: make(chan struct{}),
	}
}

// streamWriter feeds one module stream into the shared handler. Frames are
// only ever emitted on stderr; stdout is plain text.
type streamWriter struct {
	w      *wireHandler
	kind   string
	frames bool
}

func (s *streamWriter) Write(data []byte) (int, error) {
	if s.frames {
		s.w.writeFramed(s.kind, data)
	} else {
		s.w.writeText(s.kind, data)
	}
	return len(data), nil
}

func (w *wireHandler) stdout() *streamWriter {
	return &streamWriter{w: w, kind: runtime.ItemStdout}
}

func (w *wireHandler) stderr() *streamWriter {
	return &streamWriter{w: w, kind: runtime.ItemStderr, frames: true}
}

func (w *wireHandler) writeFramed(kind string, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(data)

	for {
		content := w.buf.String()
		startIdx := strings.Index(content, framePrefix)
		if startIdx == -1 {
			// A frame prefix may itself be split across writes. Keep
			// the longest buffer tail that could still grow into a
			// prefix; only the bytes before it are plain text.
			keep := partialFramePrefix(content)
			w.textLocked(kind, content[:len(content)-keep])
			w.buf.Reset()
			w.buf.WriteString(content[len(content)-keep:])
			return
		}

		w.textLocked(kind, content[:startIdx])

		endIdx := strings.Index(content[startIdx+len(framePrefix):], frameSuffix)
		if endIdx == -1 {
			w.buf.Reset()
			w.buf.WriteString(content[startIdx:])
			return
		}

		jsonStr := content[startIdx+len(framePrefix) : startIdx+len(framePrefix)+endIdx]
		w.buf.Reset()
		w.buf.WriteString(content[startIdx+len(framePrefix)+endIdx+1:])

		w.handleFrameLocked(jsonStr)
	}
}

// partialFramePrefix reports the length of the longest suffix of s that is a
// proper prefix of framePrefix.
func partialFramePrefix(s string) int {
	max := len(framePrefix) - 1
	if len(s) < max {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, framePrefix[:n]) {
			return n
		}
	}
	return 0
}

func (w *wireHandler) writeText(kind string, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.textLocked(kind, string(data))
}

// textLocked splits untagged text into lines, appending one output item per
// complete line with the newline stripped. A partial line stays buffered
// until its newline arrives.
func (w *wireHandler) textLocked(kind, text string) {
	if text == "" {
		return
	}
	buf, ok := w.lines[kind]
	if !ok {
		buf = &bytes.Buffer{}
		w.lines[kind] = buf
	}
	buf.WriteString(text)

	for {
		content := buf.String()
		idx := strings.IndexByte(content, '\n')
		if idx == -1 {
			return
		}
		w.items = append(w.items, runtime.OutputItem{Kind: kind, Text: content[:idx]})
		buf.Reset()
		buf.WriteString(content[idx+1:])
	}
}

func (w *wireHandler) handleFrameLocked(jsonStr string) {
	var f frame
	if err := json.Unmarshal([]byte(jsonStr), &f); err != nil {
		w.items = append(w.items, runtime.OutputItem{
			Kind: runtime.ItemStderr,
			Text: "malformed wire frame: " + jsonStr,
		})
		return
	}

	switch f.Type {
	case "ready":
		if !w.ready {
			w.ready = true
			close(w.readyCh)
		}

	case "item":
		if f.Item != nil {
			w.items = append(w.items, *f.Item)
		}

	case "result":
		ch, ok := w.pending[f.ID]
		if !ok {
			return
		}
		delete(w.pending, f.ID)
		ch <- callReply{data: f.Data, err: f.Error}

	case "input_request":
		w.inputPending = true
		if w.onInput != nil {
			fn, prompt, password := w.onInput, f.Prompt, f.Password
			go fn(prompt, password)
		}
	}
}

// expect registers a reply channel for a request id before the request is
// written, so the reply can never be missed.
func (w *wireHandler) expect(id uint64) chan callReply {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan callReply, 1)
	w.pending[id] = ch
	return ch
}

func (w *wireHandler) forget(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, id)
}

// takeItems drains the items captured since the last call, flushing any
// buffered partial lines first so no output is lost at eval completion.
func (w *wireHandler) takeItems() []runtime.OutputItem {
	w.mu.Lock()
	defer w.mu.Unlock()

	for kind, buf := range w.lines {
		if buf.Len() > 0 {
			w.items = append(w.items, runtime.OutputItem{Kind: kind, Text: buf.String()})
			buf.Reset()
		}
	}

	items := w.items
	w.items = nil
	return items
}

func (w *wireHandler) Ready() <-chan struct{} {
	return w.readyCh
}

func (w *wireHandler) takeInputPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	pending := w.inputPending
	w.inputPending = false
	return pending
}

func (w *wireHandler) setInputHandler(fn runtime.InputHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onInput = fn
}
