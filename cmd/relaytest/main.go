// relaytest connects to a running bridge's /feed endpoint and prints
// forwarded frames and signal events to the console.
// Usage: go run ./cmd/relaytest --url ws://localhost:8080/feed --token <bearer>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	feedURL := flag.String("url", "ws://localhost:8080/feed", "bridge feed endpoint")
	token := flag.String("token", "", "bearer token (or set BRIDGE_TOKEN)")
	verbose := flag.Bool("verbose", false, "print frame payloads as hex")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *token == "" {
		*token = os.Getenv("BRIDGE_TOKEN")
	}
	if *token == "" {
		logger.Error("no bearer token: pass --token or set BRIDGE_TOKEN")
		os.Exit(1)
	}

	u, err := url.Parse(*feedURL)
	if err != nil {
		logger.Error("invalid feed url", "error", err)
		os.Exit(1)
	}
	q := u.Query()
	q.Set("token", *token)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		logger.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("connected", "url", *feedURL)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var frames, bytes int64
	start := time.Now()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("connection closed",
				"error", err,
				"frames", frames,
				"bytes", bytes,
				"elapsed", time.Since(start),
			)
			return
		}

		switch mt {
		case websocket.TextMessage:
			fmt.Printf("event: %s\n", data)
		case websocket.BinaryMessage:
			frames++
			bytes += int64(len(data))
			if *verbose {
				fmt.Printf("frame %d (%d bytes): %x\n", frames, len(data), data)
			} else if frames%100 == 1 {
				logger.Debug("streaming", "frames", frames, "bytes", bytes)
			}
		}
	}
}
