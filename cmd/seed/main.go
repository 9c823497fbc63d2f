// Package main provides a CLI tool that writes the seed file into PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cory-johannsen/hangout/internal/config"
	"github.com/cory-johannsen/hangout/internal/content"
	"github.com/cory-johannsen/hangout/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	seedPath := flag.String("seed", "", "path to seed YAML file (default: storage.seed_file)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *seedPath == "" {
		*seedPath = cfg.Storage.SeedFile
	}

	seed, err := content.LoadFile(*seedPath)
	if err != nil {
		log.Fatalf("loading seed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	res, err := postgres.ApplySeed(ctx, pool.DB(), seed)
	if err != nil {
		log.Fatalf("applying seed: %v", err)
	}

	fmt.Fprintf(os.Stdout, "seeded %s: rooms=%d items=%d users=%d [%s]\n",
		*seedPath, res.Rooms, res.Items, res.Users, time.Since(start).Round(time.Millisecond))
}
