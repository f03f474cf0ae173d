// Package main is the entry point for the motion to point cache converter.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/smplcache/internal/config"
	"github.com/Faultbox/smplcache/internal/convert"
	"github.com/Faultbox/smplcache/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Motion.Pattern == "" {
		fmt.Fprintln(os.Stderr, "Usage: smpl2pc2 --config <file> --motion <glob>")
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("conversion failed", zap.Error(err))
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := convert.Glob(cfg.Motion.Pattern)
	if err != nil {
		return err
	}

	start := time.Now()
	model, err := convert.LoadModel(cfg.SMPL.Path, cfg.SMPL.NumShapes)
	if err != nil {
		return err
	}
	logger.Info("model loaded",
		zap.String("path", cfg.SMPL.Path),
		zap.Int("vertices", model.NumVertices()),
		zap.Int("joints", model.NumJoints()),
		zap.Int("shapes", model.NumShapes()),
		zap.Duration("elapsed", time.Since(start)),
	)

	opts, err := convert.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	conv, err := convert.New(model, opts)
	if err != nil {
		return err
	}

	stats, err := conv.Run(ctx, paths, cfg.Output.Workers)
	if err != nil {
		return err
	}

	frames := 0
	for _, s := range stats {
		frames += s.Frames
	}
	logger.Info("done",
		zap.Int("files", len(stats)),
		zap.Int("frames", frames),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
