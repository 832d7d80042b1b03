package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alxayo/go-xfer/internal/logger"
	"github.com/alxayo/go-xfer/internal/transfer/sender"
)

func newRootCommand() *cobra.Command {
	cfg := &cliConfig{address: "127.0.0.1", udpPort: 12345, tcpPort: 12346}

	cmd := &cobra.Command{
		Use:           "sender [flags] SRC HOST:DEST",
		Short:         "send a single file to a waiting receiver",
		Version:       version,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.applyPositional(args); err != nil {
				return err
			}
			return runTransfer(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.sourcePath, "file", "f", "", "source file")
	flags.StringVarP(&cfg.address, "address", "a", cfg.address, "receiver address")
	flags.IntVarP(&cfg.udpPort, "udp_port", "u", cfg.udpPort, "data-channel port")
	flags.IntVarP(&cfg.tcpPort, "tcp_port", "t", cfg.tcpPort, "control-channel port")
	flags.BoolVarP(&cfg.compress, "compress", "c", false, "enable per-transfer compression")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "verbose logging")

	return cmd
}

// runTransfer opens the source file, dials both channels, and drives the
// transfer to completion, treating an interrupt or termination signal as a
// clean shutdown rather than a failure.
func runTransfer(cfg *cliConfig) error {
	logger.Init()
	if cfg.verbose {
		if err := logger.SetLevel("debug"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		logger.UseRotatingFile("sender.log", 10, 3, 28)
	}
	log := logger.Logger().With("component", "cli")

	s, err := sender.New(sender.Config{
		SourcePath:  cfg.sourcePath,
		DestPath:    cfg.destPath,
		DataAddr:    fmt.Sprintf("%s:%d", cfg.address, cfg.udpPort),
		ControlAddr: fmt.Sprintf("%s:%d", cfg.address, cfg.tcpPort),
		Compress:    cfg.compress,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Connect(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run() }()

	select {
	case err := <-runErr:
		if err != nil {
			log.Error("transfer failed", "error", err)
			return err
		}
		log.Info("transfer complete", "dest", cfg.destPath)
		return nil
	case <-ctx.Done():
		log.Info("interrupted, closing sockets")
		s.Close()
		<-runErr
		return nil
	}
}
