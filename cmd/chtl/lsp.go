package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chtl/internal/lsp"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the CHTL language server over stdio",
	RunE:  runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
	logger := loggerFromFlags(cmd).With("component", "lsp")
	cfg, fixed, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Config:      cfg,
		ConfigFixed: fixed,
		Toolchain:   lsp.LocalToolchain{Logger: logger.With("component", "compiler")},
		Cache:       openCache(cfg, logger),
		Logger:      logger,
	})
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
