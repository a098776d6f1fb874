package main

import (
	"flag"
	"log"
	"os"

	"github.com/brightsend/campaigner/internal/config"
	"github.com/brightsend/campaigner/internal/store"
)

func main() {
	var (
		databaseURL = flag.String("database", "", "database URL (defaults to DATABASE_URL)")
		path        = flag.String("path", "", "migrations directory (defaults to MIGRATIONS_PATH or ./migrations)")
	)
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	url := *databaseURL
	if url == "" {
		url = cfg.Database.URL
	}
	dir := *path
	if dir == "" {
		dir = cfg.Database.MigrationsPath
	}

	if err := store.ApplyMigrations(url, dir); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}
