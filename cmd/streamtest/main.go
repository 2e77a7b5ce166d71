// Command streamtest is a debugging tool that connects to a realtime
// endpoint, subscribes to the channels named on the command line, and
// prints every event it receives.
//
// Usage:
//
//	streamtest -url wss://realtime.example.com/ws comments-channel blog-posts-channel
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexvargas/portfolio-realtime/internal/connection"
	"github.com/alexvargas/portfolio-realtime/internal/subscription"
)

func main() {
	url := flag.String("url", "ws://localhost:4000/ws", "realtime endpoint URL")
	token := flag.String("token", "", "bearer token for the handshake")
	heartbeat := flag.Duration("heartbeat", 30*time.Second, "heartbeat interval")
	flag.Parse()

	channels := flag.Args()
	if len(channels) == 0 {
		fmt.Fprintln(os.Stderr, "usage: streamtest [flags] <channel> [<channel>...]")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	var reg *subscription.Registry

	cfg := connection.DefaultManagerConfig()
	cfg.HeartbeatInterval = *heartbeat

	mgr := connection.NewManager(cfg, connection.Hooks{
		OnConnected: func(connID string) {
			logger.Info("connected", "conn_id", connID)
			reg.ResubscribeAll(connID)
		},
		OnClosing: func(connID string) {
			reg.RemoveConnection(connID)
		},
		OnFrame: func(connID string, frame connection.InboundFrame, raw []byte) {
			reg.HandleFrame(connID, frame, raw)
		},
		OnMaxAttempts: func(connID string) {
			logger.Error("gave up reconnecting", "conn_id", connID)
			os.Exit(1)
		},
	}, logger)

	reg = subscription.NewRegistry(mgr, logger)
	reg.SetRawHandler(func(connID string, raw []byte) {
		fmt.Printf("[raw] %s\n", raw)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		logger.Error("start failed", "error", err)
		os.Exit(1)
	}

	opts := connection.CreateOptions{}
	if *token != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + *token}
	}

	connID, err := mgr.Create(*url, nil, opts)
	if err != nil {
		logger.Error("create connection failed", "error", err)
		os.Exit(1)
	}

	for _, name := range channels {
		name := name
		reg.Subscribe(connID, name, nil)
		reg.AddListener(name, subscription.Any(), func(ev subscription.Event) {
			fmt.Printf("[%s] type=%s payload=%s\n", name, ev.Type, ev.Payload)
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	mgr.Stop(shutdownCtx)
}
