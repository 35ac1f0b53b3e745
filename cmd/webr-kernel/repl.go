package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/r-wasm/jupyterlite-webr-kernel/kernel"
	"github.com/r-wasm/jupyterlite-webr-kernel/protocol"
	"github.com/r-wasm/jupyterlite-webr-kernel/runtime/webr"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive R session through the kernel pipeline",
	Long: `Start an interactive session that drives the full kernel pipeline:
each line becomes an execute request, and the kernel's stream, result, and
display messages are printed as they arrive.

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.webr_kernel_history)")
	rootCmd.AddCommand(replCmd)
}

// consoleSender renders kernel output for a terminal: stream text verbatim,
// text/plain payloads for results and displays, statuses suppressed.
type consoleSender struct {
	out io.Writer
}

func (c *consoleSender) Send(m *protocol.Message) error {
	switch m.Header.MsgType {
	case protocol.MsgStream:
		var content protocol.Stream
		if err := m.DecodeContent(&content); err != nil {
			return err
		}
		fmt.Fprint(c.out, content.Text)

	case protocol.MsgExecuteResult:
		var content protocol.ExecuteResult
		if err := m.DecodeContent(&content); err != nil {
			return err
		}
		if text, ok := content.Data["text/plain"].(string); ok {
			fmt.Fprintln(c.out, text)
		}

	case protocol.MsgDisplayData:
		var content protocol.DisplayData
		if err := m.DecodeContent(&content); err != nil {
			return err
		}
		if text, ok := content.Data["text/plain"].(string); ok {
			fmt.Fprintln(c.out, text)
		}
	}
	return nil
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".webr_kernel_history")
	}

	interp := webr.New()
	session := kernel.NewSession(interp, &consoleSender{out: os.Stdout},
		kernel.WithName(cfg.Kernel.Name),
		kernel.WithPlotSize(cfg.Plot.Width, cfg.Plot.Height),
		kernel.WithPlotDPI(cfg.Plot.DPI),
		kernel.WithLogger(log),
	)
	defer session.Dispose()

	fmt.Fprintln(os.Stderr, "starting webR...")
	if err := session.Start(cmd.Context()); err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(os.Stderr, "webR REPL (type 'exit' to quit, Ctrl+D to exit)")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		msg := protocol.NewMessage(protocol.MsgExecuteRequest, session.ID(), "repl", protocol.ChannelShell, protocol.ExecuteRequest{
			Code: line,
		})
		if err := session.HandleMessage(cmd.Context(), msg); err != nil {
			return err
		}
	}
}
