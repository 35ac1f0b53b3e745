// Package kernel implements the message-mediation core of the webR notebook
// kernel: the session lifecycle state machine, the serialized execution
// coordinator, output classification, and plot change detection.
//
// # Overview
//
// A Session owns one embedded R interpreter and translates between the
// Jupyter messaging protocol and the interpreter's capabilities. Inbound
// messages are dispatched by kind; execute requests run one at a time
// through a coordinator that brackets every request with busy/idle status
// broadcasts and guarantees the per-request scratch arena is released.
//
// # Basic Usage
//
//	interp := webr.New()
//	session := kernel.NewSession(interp, sender)
//	defer session.Dispose()
//
//	if err := session.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for msg := range inbound {
//	    if err := session.HandleMessage(ctx, msg); err != nil {
//	        // ErrNotSupported for completion/inspection/comm kinds,
//	        // ErrShelterLeak when the session must be torn down.
//	    }
//	}
//
// # Plot emission
//
// At most one new graphic is emitted per execute request. The plot differ
// renders the active graphics device off-screen, fingerprints the result,
// and emits a display message only when the interpreter reported a new-page
// event or the fingerprint differs from the last emitted plot.
package kernel
