// worker runs the mail poll and escalation dispatch jobs without the HTTP
// surface. With --loop it keeps both on their configured schedule; otherwise
// it runs the selected job once and exits, which suits cron-style hosting.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/aviation-mailbot/internal/app"
	"github.com/spec-kit/aviation-mailbot/internal/config"
	"github.com/spec-kit/aviation-mailbot/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var job string
	var loop bool
	var mailbox string

	flagSet := pflag.NewFlagSet("mailbot-worker", pflag.ContinueOnError)
	flagSet.StringVar(&job, "job", "all", "job to run once: poll, escalate or all")
	flagSet.StringVar(&mailbox, "mailbox", "", "restrict --job=poll to a single mailbox")
	flagSet.BoolVar(&loop, "loop", false, "run both jobs on their configured intervals until interrupted")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := observability.NewMeterProvider(ctx, cfg.App, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer provider.Shutdown(context.Background()) //nolint:errcheck

	metrics, err := observability.NewMetricsFromGlobal()
	if err != nil {
		return fmt.Errorf("create instruments: %w", err)
	}

	mailbot, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer mailbot.Close()

	if loop {
		err := mailbot.Scheduler().Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	switch job {
	case "poll":
		return poll(ctx, mailbot, mailbox, logger)
	case "escalate":
		return escalate(ctx, mailbot, logger)
	case "all":
		if err := poll(ctx, mailbot, mailbox, logger); err != nil {
			return err
		}
		return escalate(ctx, mailbot, logger)
	default:
		return fmt.Errorf("unknown job %q", job)
	}
}

func poll(ctx context.Context, mailbot *app.App, mailbox string, logger *zap.Logger) error {
	if mailbox != "" {
		report, err := mailbot.Intake.ProcessMailbox(ctx, mailbox)
		if err != nil {
			return err
		}
		logger.Info("mailbox polled", zap.Any("report", report))
		return nil
	}
	reports, err := mailbot.Intake.ProcessAllMailboxes(ctx)
	if err != nil {
		return err
	}
	logger.Info("mailboxes polled", zap.Any("reports", reports))
	return nil
}

func escalate(ctx context.Context, mailbot *app.App, logger *zap.Logger) error {
	report, err := mailbot.Escalations.ProcessDue(ctx)
	if err != nil {
		return err
	}
	logger.Info("escalations dispatched", zap.Any("report", report))
	return nil
}
