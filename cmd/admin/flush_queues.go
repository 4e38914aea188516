package main

import (
	"context"
	"fmt"
	"os"

	redisclient "github.com/gradewise/grader/internal/infra/redis"
)

// Drops all pending and dead-lettered submissions from Redis. Intended
// for local development resets only.
func main() {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	client, err := redisclient.NewClient(redisclient.Config{URL: url})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	if err := client.FlushQueues(context.Background()); err != nil {
		panic(err)
	}

	fmt.Println("Successfully flushed grading queues")
}
