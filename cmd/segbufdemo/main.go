// Command segbufdemo is a small CLI harness that drives the segbuf
// dispatcher end to end. It is deliberately outside the core module: the
// core is a library surface, not a protocol or a process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/seglab/segbuf/internal/harness"
)

// errInterrupted marks a clean shutdown triggered by SIGINT/SIGTERM, as
// opposed to a real failure in the demo run.
var errInterrupted = errors.New("segbufdemo: interrupted")

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:   "segbufdemo",
	Short: "Demo producer/consumer harness for the segbuf dispatcher",
	Run: func(_ *cobra.Command, _ []string) {
		if err := run(cmd); err != nil {
			if errors.Is(err, errInterrupted) || errors.Is(err, context.Canceled) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (optional)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

// buildLogger builds the demo's console logger: colorized level names when
// stderr is a terminal, plain capitals otherwise.
func buildLogger(level zapcore.Level) (*zap.SugaredLogger, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func run(cmd Cmd) error {
	cfg := harness.DefaultConfig()
	if cmd.ConfigPath != "" {
		var err error
		cfg, err = harness.LoadConfig(cmd.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg, gctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		defer cancel()
		return harness.Run(gctx, cfg, log)
	})
	wg.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			log.Infof("caught signal: %v", sig)
			return errInterrupted
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	return wg.Wait()
}
