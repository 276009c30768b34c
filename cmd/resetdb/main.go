package main

import (
	"context"
	"log"

	"classtrack/internal/config"
	"classtrack/internal/store"
)

// resetdb drops all tables, recreates the schema and reseeds the fixture
// accounts. Development tool; never run against data you want to keep.
func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := db.Drop(ctx); err != nil {
		log.Fatalf("drop failed: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}
	if err := db.Seed(ctx); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	log.Printf("reset complete (%s store)", cfg.DBDriver)
}
