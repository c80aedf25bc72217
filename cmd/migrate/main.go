// Command migrate applies or rolls back the embedded schema migrations.
//
//	migrate up
//	migrate down
//	migrate steps -n -1
//	migrate version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"landedcost/internal/infrastructure/storage/postgres"
	"landedcost/pkg/logger"
)

func main() {
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	steps := flag.Int("n", 1, "number of steps for the steps command (negative rolls back)")
	flag.Parse()

	if flag.NArg() != 1 || *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "usage: migrate [-database-url URL] [-n N] up|down|steps|version")
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	m, err := postgres.NewMigrator(*databaseURL)
	if err != nil {
		log.Fatalw("failed to open migrator", "error", err)
	}
	defer func() { _ = m.Close() }()

	ctx := context.Background()
	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up(ctx)
	case "down":
		err = m.Down(ctx)
	case "steps":
		err = m.Steps(ctx, *steps)
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = m.Version()
		if err == nil {
			log.Infow("schema version", "version", v, "dirty", dirty)
		}
	default:
		log.Fatalw("unknown command", "command", cmd)
	}

	if err != nil {
		log.Fatalw("migration failed", "error", err)
	}
}
