package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/coffersTech/actionlog/pkg/actionlog"
)

func main() {
	client, err := actionlog.New(actionlog.Options{
		ServerURL:    "http://localhost:8088",
		BatchSize:    10,
		BatchTimeout: 2 * time.Second,
	})
	if err != nil {
		slog.Error("create client", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer client.Close(ctx)

	_ = client.Enqueue(ctx, actionlog.Entry{
		UserName:  "alice",
		CompanyID: "acme",
		Event:     "login",
		Details:   "password login from web",
	}, "")

	logger := slog.New(actionlog.NewHandler(client, actionlog.HandlerOptions{CompanyID: "acme", Stream: "audit"}))
	logger.Info("report exported", "user", "bob", "format", "csv", "rows", 1200)
	logger.Warn("export quota nearly used", "user", "bob", "remaining", 3)

	if err := client.Flush(ctx); err != nil {
		slog.Error("flush", "error", err)
	}

	logs, err := client.Logs(ctx, actionlog.Filter{CompanyID: "acme", Limit: 10})
	if err != nil {
		slog.Error("query", "error", err)
		return
	}
	for _, e := range logs {
		slog.Info("entry", "time", e.Timestamp, "user", e.UserName, "event", e.Event, "level", e.Level)
	}
}
