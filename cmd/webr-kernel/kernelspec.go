package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var kernelspecCmd = &cobra.Command{
	Use:   "kernelspec [directory]",
	Short: "Write a Jupyter kernelspec for this kernel",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runKernelspec,
}

func init() {
	rootCmd.AddCommand(kernelspecCmd)
}

type kernelspec struct {
	Argv        []string `json:"argv"`
	DisplayName string   `json:"display_name"`
	Language    string   `json:"language"`
}

func runKernelspec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	dir = filepath.Join(dir, cfg.Kernel.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create kernelspec dir: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	spec := kernelspec{
		Argv:        []string{exe, "serve"},
		DisplayName: cfg.Kernel.DisplayName,
		Language:    "R",
	}
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := filepath.Join(dir, "kernel.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write kernelspec: %w", err)
	}

	fmt.Println(path)
	return nil
}
