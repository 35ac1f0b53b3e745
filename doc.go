// Package webrkernel provides a Jupyter kernel adapter for webR, the R
// interpreter compiled to WebAssembly.
//
// # Overview
//
// The kernel receives execute/info/input messages from a notebook
// front-end, forwards code to an embedded R runtime hosted in a wazero WASM
// module, and translates the runtime's output (text streams, conditions,
// graphics) back into ordered protocol messages.
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
//	err := session.HandleMessage(ctx, msg)
//
// See the [kernel], [protocol], [runtime], and [runtime/webr] packages for
// detailed API documentation.
package webrkernel
