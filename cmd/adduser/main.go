// Package main provides a CLI tool for creating a user or resetting a password.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cory-johannsen/hangout/internal/config"
	"github.com/cory-johannsen/hangout/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	username := flag.String("username", "", "username to create or update (required)")
	password := flag.String("password", "", "plaintext password (required)")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewUserRepository(pool.DB())

	// A nil position clears the stored last position; the user respawns in the default room.
	user, err := repo.Upsert(ctx, *username, *password, nil)
	if err != nil {
		log.Fatalf("saving user %q: %v", *username, err)
	}

	fmt.Fprintf(os.Stdout, "saved user %s (%s) [%s]\n", user.Username, user.ID, time.Since(start))
}
