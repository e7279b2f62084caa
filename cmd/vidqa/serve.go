package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/vidqa/server"
	"github.com/urfave/cli/v2"
)

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}

	session, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Session: %s\n", session.ID())
	fmt.Fprintf(os.Stderr, "Storage backend: %s\n", cfg.Storage.Backend)
	fmt.Fprintf(os.Stderr, "Chat model: %s\n", cfg.AI.ChatModel)

	if err := server.New(session, slog.Default()).ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
