package kernel

import (
	"github.com/r-wasm/jupyterlite-webr-kernel/protocol"
	"github.com/r-wasm/jupyterlite-webr-kernel/runtime"
)

const warningPrefix = "Warning message:\n"

// classify maps one captured output item to stream content. The second
// return is false for unknown item kinds, which are dropped without a
// message: new output kinds from the interpreter must never break the
// execute lane.
func classify(item runtime.OutputItem) (protocol.Stream, bool) {
	switch item.Kind {
	case runtime.ItemStdout:
		return protocol.Stream{Name: protocol.StreamStdout, Text: item.Text + "\n"}, true
	case runtime.ItemStderr:
		return protocol.Stream{Name: protocol.StreamStderr, Text: item.Text + "\n"}, true
	case runtime.ItemMessage:
		return protocol.Stream{Name: protocol.StreamStderr, Text: item.ConditionMessage() + "\n"}, true
	case runtime.ItemWarning:
		return protocol.Stream{Name: protocol.StreamStderr, Text: warningPrefix + item.ConditionMessage() + "\n"}, true
	default:
		return protocol.Stream{}, false
	}
}
