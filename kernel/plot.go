package kernel

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/r-wasm/jupyterlite-webr-kernel/protocol"
	"github.com/r-wasm/jupyterlite-webr-kernel/runtime"
)

// plotState is the per-session record of the last emitted plot. Mutated
// only after a successful emission so a failed render never poisons change
// detection.
type plotState struct {
	fingerprint uint64
	hasPlot     bool
}

// plotDiffer decides, once per execute-request, whether the graphics device
// changed enough to warrant a new display message.
type plotDiffer struct {
	interp   runtime.Interpreter
	widthPx  int
	heightPx int
	log      zerolog.Logger
}

func newPlotDiffer(interp runtime.Interpreter, widthIn, heightIn, dpi float64, log zerolog.Logger) *plotDiffer {
	return &plotDiffer{
		interp:   interp,
		widthPx:  int(widthIn * dpi),
		heightPx: int(heightIn * dpi),
		log:      log,
	}
}

// check renders the active device and returns display content when a new
// plot should be shown, nil when nothing changed. The stored fingerprint and
// the device's new-plot flag are updated only on emission.
//
// The flag-or-fingerprint disjunction covers both explicit new pages and
// silent mutation of an existing plot (points() onto the same device).
func (d *plotDiffer) check(ctx context.Context, state *plotState) (*protocol.DisplayData, error) {
	ds, err := d.interp.DeviceState(ctx)
	if err != nil {
		return nil, fmt.Errorf("query device state: %w", err)
	}
	if ds.Device == 0 {
		return nil, nil
	}

	png, err := d.interp.RenderDevice(ctx, d.widthPx, d.heightPx)
	if err != nil {
		return nil, fmt.Errorf("render device %d: %w", ds.Device, err)
	}

	fp := xxhash.Sum64(png)
	if !ds.NewPlot && state.hasPlot && fp == state.fingerprint {
		d.log.Debug().Int("device", ds.Device).Msg("plot unchanged, suppressing display")
		return nil, nil
	}

	content := &protocol.DisplayData{
		Data: map[string]any{
			"image/png":  base64.StdEncoding.EncodeToString(png),
			"text/plain": fmt.Sprintf("<plot %dx%d>", d.widthPx, d.heightPx),
		},
		Metadata: map[string]any{
			"image/png": map[string]any{
				"width":  d.widthPx,
				"height": d.heightPx,
			},
		},
	}

	// State advances only once the flag reset succeeds; a failed reset must
	// leave the plot eligible for emission on the next request.
	if err := d.interp.ClearNewPlot(ctx); err != nil {
		return nil, fmt.Errorf("clear new-plot flag: %w", err)
	}
	state.fingerprint = fp
	state.hasPlot = true
	return content, nil
}
