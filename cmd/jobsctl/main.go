// Command jobsctl triggers background jobs by hand and prints queue stats.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/ferreexpress/ferreexpress/internal/app"
)

func main() {
	_ = godotenv.Load()

	trigger := flag.String("trigger", "", "job to enqueue: quotations:expire|idempotency:cleanup")
	inspect := flag.Bool("inspect", false, "print default queue stats")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := asynq.NewClient(redisOpts)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	cli := &JobsCLI{
		client:    client,
		inspector: inspector,
		retention: cfg.IdempotencyRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}

	if *trigger != "" {
		info, err := cli.Trigger(context.Background(), *trigger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trigger %s: %v\n", *trigger, err)
			os.Exit(1)
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	}
	if *inspect {
		stats, err := cli.InspectQueue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	}
}
