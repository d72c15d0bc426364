package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/walkai/stride/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	apiBase := flag.String("api", "", "override walk:ai backend URL (optional)")
	pollSeconds := flag.Int("poll", 0, "jobs refresh interval in seconds (optional)")
	invitation := flag.String("invitation", "", "invitation token to accept")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath:      *configPath,
		APIBase:         *apiBase,
		InvitationToken: *invitation,
	}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "stride: %v\n", err)
		return 1
	}
	return 0
}
