package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/vaidashi/delivery-orders/internal/config"
	"github.com/vaidashi/delivery-orders/internal/database"
	"github.com/vaidashi/delivery-orders/pkg/logger"
)

const usage = `Usage: migrate [command] [args...]

Commands are passed to goose: up (default), down, status, version, redo,
reset, up-to VERSION, down-to VERSION.
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(logger.Options{
		ServiceName: "delivery-orders-migrate",
		Level:       cfg.App.LogLevel,
		Format:      "console",
	})

	command := "up"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg, l)
	if err != nil {
		l.Error("Database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx, command, args...); err != nil {
		l.Error("Migration failed", "command", command, "error", err)
		db.Close()
		os.Exit(1)
	}
}
