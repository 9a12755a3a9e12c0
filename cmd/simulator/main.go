package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agri-compath/simulator"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:   "simulator",
		Usage:  "drive a running agri-compath service with simulated farmers",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-url",
				EnvVars: []string{"SIM_ENGINE_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:     "jwt-secret",
				Usage:    "must match the service's JWT_SECRET",
				EnvVars:  []string{"JWT_SECRET"},
				Required: true,
			},
			&cli.IntFlag{
				Name:  "users",
				Value: 50,
			},
			&cli.IntFlag{
				Name:  "communities",
				Value: 5,
			},
			&cli.IntFlag{
				Name:  "viewers",
				Usage: "live views held open during the run",
				Value: 10,
			},
			&cli.DurationFlag{
				Name:  "duration",
				Value: simulatorDefaults.SimulationTime,
			},
			&cli.DurationFlag{
				Name:  "tick",
				Value: simulatorDefaults.TickInterval,
			},
			&cli.Float64Flag{
				Name:  "topic-rate",
				Usage: "topics per user per hour",
				Value: simulatorDefaults.TopicFrequency,
			},
			&cli.Float64Flag{
				Name:  "reply-rate",
				Usage: "replies per user per hour",
				Value: simulatorDefaults.ReplyFrequency,
			},
			&cli.Float64Flag{
				Name:  "share-rate",
				Usage: "record shares per user per hour",
				Value: simulatorDefaults.ShareFrequency,
			},
			&cli.Float64Flag{
				Name:  "alert-rate",
				Usage: "admin alerts per community per hour",
				Value: simulatorDefaults.AlertFrequency,
			},
			&cli.Float64Flag{
				Name:  "zipf",
				Value: simulatorDefaults.ZipfS,
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
		},
		ErrWriter: os.Stderr,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

var simulatorDefaults = simulator.SimConfig{
	SimulationTime: 10 * time.Minute,
	TickInterval:   500 * time.Millisecond,
	TopicFrequency: 20,
	ReplyFrequency: 60,
	ShareFrequency: 10,
	AlertFrequency: 2,
	ZipfS:          1.07,
}

var run = func(cmd *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

	config := simulator.SimConfig{
		NumUsers:       cmd.Int("users"),
		NumCommunities: cmd.Int("communities"),
		NumViewers:     cmd.Int("viewers"),
		SimulationTime: cmd.Duration("duration"),
		TickInterval:   cmd.Duration("tick"),
		TopicFrequency: cmd.Float64("topic-rate"),
		ReplyFrequency: cmd.Float64("reply-rate"),
		ShareFrequency: cmd.Float64("share-rate"),
		AlertFrequency: cmd.Float64("alert-rate"),
		ZipfS:          cmd.Float64("zipf"),
		EngineURL:      cmd.String("engine-url"),
		JWTSecret:      cmd.String("jwt-secret"),
	}

	sim, err := simulator.NewSimulator(config, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context, config.SimulationTime)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sim.Run(ctx); err != nil {
		logger.Error("simulation failed", "error", err)
		return err
	}

	metrics := sim.GetMetrics()
	logger.Info("simulation completed",
		"users", metrics.TotalUsers,
		"communities", metrics.TotalCommunities,
		"topics", metrics.TotalTopics,
		"replies", metrics.TotalReplies,
		"shares", metrics.TotalShares,
		"alerts", metrics.TotalAlerts,
		"updates_received", metrics.UpdatesReceived,
		"avg_latency", metrics.AverageLatency.String(),
		"errors", metrics.ErrorCount,
	)
	return nil
}
