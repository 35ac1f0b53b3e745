package kernel

import (
	"testing"

	"github.com/r-wasm/jupyterlite-webr-kernel/runtime"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		item     runtime.OutputItem
		wantName string
		wantText string
		wantOK   bool
	}{
		{
			name:     "stdout text",
			item:     runtime.OutputItem{Kind: runtime.ItemStdout, Text: "[1] 42"},
			wantName: "stdout",
			wantText: "[1] 42\n",
			wantOK:   true,
		},
		{
			name:     "stderr text",
			item:     runtime.OutputItem{Kind: runtime.ItemStderr, Text: "boot noise"},
			wantName: "stderr",
			wantText: "boot noise\n",
			wantOK:   true,
		},
		{
			name: "message condition",
			item: runtime.OutputItem{
				Kind:      runtime.ItemMessage,
				Condition: &runtime.Condition{Message: "loading package"},
			},
			wantName: "stderr",
			wantText: "loading package\n",
			wantOK:   true,
		},
		{
			name: "warning condition gets prefix",
			item: runtime.OutputItem{
				Kind:      runtime.ItemWarning,
				Condition: &runtime.Condition{Message: "NAs introduced by coercion"},
			},
			wantName: "stderr",
			wantText: "Warning message:\nNAs introduced by coercion\n",
			wantOK:   true,
		},
		{
			name:     "message without structure falls back to text",
			item:     runtime.OutputItem{Kind: runtime.ItemMessage, Text: "plain"},
			wantName: "stderr",
			wantText: "plain\n",
			wantOK:   true,
		},
		{
			name:   "unknown kind dropped",
			item:   runtime.OutputItem{Kind: "canvasImage", Text: "ignored"},
			wantOK: false,
		},
		{
			name:   "empty kind dropped",
			item:   runtime.OutputItem{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, ok := classify(tt.item)
			if ok != tt.wantOK {
				t.Fatalf("classify ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if content.Name != tt.wantName {
				t.Errorf("stream name = %q, want %q", content.Name, tt.wantName)
			}
			if content.Text != tt.wantText {
				t.Errorf("stream text = %q, want %q", content.Text, tt.wantText)
			}
		})
	}
}
