package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/r-wasm/jupyterlite-webr-kernel/kernel"
	"github.com/r-wasm/jupyterlite-webr-kernel/protocol"
	"github.com/r-wasm/jupyterlite-webr-kernel/runtime/webr"
)

const maxMessageSize = 16 * 1024 * 1024

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kernel over newline-delimited JSON on stdio",
	Long: `Run the kernel message loop.

Inbound protocol messages are read as JSON lines from stdin; outbound
messages are written as JSON lines to stdout. Logs go to stderr. The loop
ends on stdin EOF or when the session becomes unusable.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// lineSender writes outbound messages as JSON lines. Sends are serialized
// so interleaved goroutines cannot corrupt the stream.
type lineSender struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineSender(w io.Writer) *lineSender {
	return &lineSender{enc: json.NewEncoder(w)}
}

func (s *lineSender) Send(m *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(m)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	interp := webr.New()
	sender := newLineSender(os.Stdout)

	session := kernel.NewSession(interp, sender,
		kernel.WithName(cfg.Kernel.Name),
		kernel.WithPlotSize(cfg.Plot.Width, cfg.Plot.Height),
		kernel.WithPlotDPI(cfg.Plot.DPI),
		kernel.WithLogger(log),
	)
	defer session.Dispose()

	ctx := cmd.Context()

	// Readiness resolves in the background so kernel_info requests can be
	// accepted (and deferred) while webR is still booting.
	go func() {
		if err := session.Start(ctx); err != nil {
			log.Error().Err(err).Msg("session start failed")
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := protocol.ParseMessage(line)
		if err != nil {
			log.Warn().Err(err).Msg("dropping unparseable message")
			continue
		}

		err = session.HandleMessage(ctx, msg)
		switch {
		case err == nil:
		case errors.Is(err, kernel.ErrShelterLeak):
			return fmt.Errorf("session unusable: %w", err)
		case errors.Is(err, kernel.ErrSessionDisposed):
			return nil
		case errors.Is(err, kernel.ErrNotSupported):
			log.Warn().Str("msg_type", msg.Header.MsgType).Msg("unsupported request")
		default:
			log.Error().Err(err).Str("msg_type", msg.Header.MsgType).Msg("message handling failed")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	log.Info().Msg("stdin closed, shutting down")
	return nil
}
