// Package main is the entry point for the todo CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"todo/internal/backend/googletasks"
	"todo/internal/backend/supabase"
	"todo/internal/cli"
	"todo/internal/commands"
	"todo/internal/config"
	"todo/internal/service"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	fieldKeys := []string{"method", "outcome"}
	middlewares := []service.Middleware{
		service.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "todo",
				Subsystem: "store",
				Name:      "request_count",
				Help:      "Number of store calls made.",
			}, fieldKeys),
			kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
				Namespace: "todo",
				Subsystem: "store",
				Name:      "request_latency_seconds",
				Help:      "Duration of store calls in seconds.",
			}, []string{"method"}),
		),
		service.BreakerMiddleware(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "store",
			Timeout: 30 * time.Second,
		})),
		service.RateLimitMiddleware(rate.NewLimiter(rate.Every(100*time.Millisecond), 10)),
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, backendFactory(middlewares))

	// Run and exit with code
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}

// backendFactory builds the configured store wrapped in logging and mws.
func backendFactory(mws []service.Middleware) cli.BackendFactory {
	return func(ctx context.Context, cfg *config.Config, logger log.Logger) (service.Backend, error) {
		var backend service.Backend
		switch cfg.Backend {
		case config.BackendGoogleTasks:
			c, err := googletasks.New(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			backend = c
		default:
			c, err := supabase.New(cfg, logger)
			if err != nil {
				return nil, err
			}
			backend = c
		}
		chain := append([]service.Middleware{service.LoggingMiddleware(log.With(logger, "layer", "store"))}, mws...)
		return service.Chain(backend, chain...), nil
	}
}
