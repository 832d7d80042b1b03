package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alxayo/go-xfer/internal/logger"
	"github.com/alxayo/go-xfer/internal/transfer/receiver"
)

const shutdownGrace = 5 * time.Second

func newRootCommand() *cobra.Command {
	cfg := &cliConfig{bindAddr: "0.0.0.0", udpPort: 12345, tcpPort: 12346}

	cmd := &cobra.Command{
		Use:           "receiver [flags]",
		Short:         "accept a single file transfer from a sender",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveOnce(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.bindAddr, "address", "a", cfg.bindAddr, "bind address")
	flags.IntVarP(&cfg.udpPort, "udp_port", "u", cfg.udpPort, "data-channel port")
	flags.IntVarP(&cfg.tcpPort, "tcp_port", "t", cfg.tcpPort, "control-channel port")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "verbose logging")

	return cmd
}

// serveOnce binds both channels, accepts exactly one sender, and serves that
// transfer to completion, or exits cleanly on SIGINT/SIGTERM.
func serveOnce(cfg *cliConfig) error {
	logger.Init()
	if cfg.verbose {
		if err := logger.SetLevel("debug"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		logger.UseRotatingFile("receiver.log", 10, 3, 28)
	}
	log := logger.Logger().With("component", "cli")

	r := receiver.New(receiver.Config{
		DataAddr:    fmt.Sprintf("%s:%d", cfg.bindAddr, cfg.udpPort),
		ControlAddr: fmt.Sprintf("%s:%d", cfg.bindAddr, cfg.tcpPort),
	})
	if err := r.Listen(); err != nil {
		return err
	}
	log.Info("listening", "data_addr", r.DataAddr(), "control_addr", r.ControlAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- r.Serve() }()

	select {
	case err := <-done:
		if err != nil {
			log.Error("transfer failed", "error", err)
			return err
		}
		log.Info("transfer complete")
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received")
		r.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		select {
		case <-done:
			log.Info("receiver stopped cleanly")
		case <-shutdownCtx.Done():
			log.Error("forced exit after timeout")
		}
		return nil
	}
}
