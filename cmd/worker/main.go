package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classtrack/internal/attendance"
	"classtrack/internal/config"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// Worker consumes mark events and logs per-session roll-ups. It only makes
// sense with the redis queue backend; the in-memory queue is process-local.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient.Client, "classtrack:marks")

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "mark" {
			continue
		}

		var evt attendance.MarkEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("bad event %s: %v", msg.ID, err)
			continue
		}

		marked, err := repo.CountSessionMarks(ctx, evt.SessionID)
		if err != nil {
			log.Printf("count marks for session %d failed: %v", evt.SessionID, err)
			continue
		}
		log.Printf("student %d marked present in %s (session %d, %d marked so far)",
			evt.StudentID, evt.CourseName, evt.SessionID, marked)
	}

	log.Println("worker stopped")
}
