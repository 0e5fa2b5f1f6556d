package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	prototype "github.com/aoldershaw/bootc-image-prototype"
	"github.com/sirupsen/logrus"
)

func main() {
	// RUNNER_DEBUG is set when a workflow is re-run with debug logging
	if os.Getenv("RUNNER_DEBUG") == "1" || os.Getenv("ACTIONS_STEP_DEBUG") == "true" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := prototype.DetectPrivilege()
	logrus.Debugf("privilege mode: %s", mode)

	platform := prototype.NewGitHubActions()
	builder := prototype.NewBuilder(prototype.NewExecutor(mode, os.Stdout))

	if err := prototype.Run(ctx, platform, builder); err != nil {
		os.Exit(1)
	}
}
