package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/cadence/adapter/cli"
	"github.com/felixgeelhaar/cadence/adapter/cli/event"
	"github.com/felixgeelhaar/cadence/adapter/cli/occurrence"
	"github.com/felixgeelhaar/cadence/adapter/cli/reminder"
	"github.com/felixgeelhaar/cadence/adapter/cli/rule"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli.SetLogger(observability.LoggerFromEnv())

	cli.AddCommand(event.Cmd)
	cli.AddCommand(rule.Cmd)
	cli.AddCommand(occurrence.ListCmd)
	cli.AddCommand(occurrence.Cmd)
	cli.AddCommand(reminder.Cmd)

	cli.Execute(ctx)
}
