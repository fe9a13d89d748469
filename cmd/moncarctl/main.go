// Command moncarctl runs operator tasks against the sync queue.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MRAMOS343/moncar-api/cmd/moncarctl/cli"
)

const usage = `usage: moncarctl [-redis addr] <command> [flags]

commands:
  stats                           print default queue counters
  prune [-retention-hours N]      enqueue an audit retention run
  enqueue-sales -file ventas.json enqueue a sales batch for the worker
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("moncarctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	redisAddr := global.String("redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	jobsCLI := cli.NewJobsCLI(*redisAddr)
	defer jobsCLI.Close()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "stats":
		stats, err := jobsCLI.InspectQueue()
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(stats)
	case "prune":
		fs := flag.NewFlagSet("prune", flag.ContinueOnError)
		fs.SetOutput(stderr)
		hours := fs.Int("retention-hours", 0, "override the configured retention")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		info, err := jobsCLI.TriggerPrune(ctx, *hours)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintf(stdout, "queued %s (%s)\n", info.Type, info.ID)
	case "enqueue-sales":
		fs := flag.NewFlagSet("enqueue-sales", flag.ContinueOnError)
		fs.SetOutput(stderr)
		file := fs.String("file", "", "JSON file with a sales batch")
		by := fs.String("by", "moncarctl", "requester recorded in the task")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if *file == "" {
			fmt.Fprintln(stderr, "enqueue-sales: -file is required")
			return 2
		}
		info, n, err := jobsCLI.EnqueueSalesFile(ctx, *file, *by, time.Now().UTC())
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintf(stdout, "queued %d sales as %s\n", n, info.ID)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
