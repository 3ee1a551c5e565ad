// cmd/lcfs/main.go
package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sungw5/lcfs/internal/bus"
	"github.com/sungw5/lcfs/internal/cache"
	"github.com/sungw5/lcfs/internal/config"
	"github.com/sungw5/lcfs/internal/filesys"
	"github.com/sungw5/lcfs/internal/fserr"
	"github.com/sungw5/lcfs/internal/logging"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "lcfs",
		Short:         "Block file store over a register-frame device bus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "lcfs.yaml", "config file")

	root.AddCommand(
		probeCmd(&cfgPath),
		runCmd(&cfgPath),
		mapCmd(&cfgPath),
		cpCmd(&cfgPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lcfs: %v\n", err)
		os.Exit(int(errorCode(err)))
	}
}

// env is one configured store plus what it needs torn down.
type env struct {
	fs       *filesys.System
	log      *slog.Logger
	closeBus func() error
}

// setup loads config and wires the store. Startup failures are fatal.
func setup(cfgPath string) *env {
	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	c := cfg.LCFS

	logger, err := logging.New(os.Stderr, c.Log.Level, c.Log.Format)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}

	// --------------------
	// Bus + store
	// --------------------

	tr, closeBus, err := bus.Build(c.Bus)
	if err != nil {
		log.Fatalf("bus build failed (kind=%s): %v", c.Bus.Kind, err)
	}
	logger.With("component", logging.ComponentBus).Info("bus ready", "kind", c.Bus.Kind, "endpoint", c.Bus.Endpoint)

	fs := filesys.New(tr, filesys.Config{
		MaxFiles: c.Files.MaxHandles,
		Cache:    cache.New(c.Cache.MaxBlocks),
		Logger:   logger,
	})

	return &env{fs: fs, log: logger, closeBus: closeBus}
}

func (e *env) close() {
	if err := e.fs.Shutdown(); err != nil {
		e.log.Warn("shutdown failed", "err", err)
	}
	if err := e.closeBus(); err != nil {
		e.log.Warn("bus close failed", "err", err)
	}
}

// errorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, the file store error kind decides.
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return fserr.Code(err)
}
