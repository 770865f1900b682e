//go:build rp2040

package main

import (
	"context"
	"time"

	"invmon/platform"
	"invmon/types"
)

// Lets USB CDC enumerate before the first print.
const bootDelay = 2 * time.Second

func openBoard(cfg types.AppConfig) *platform.Registry {
	return platform.NewBoard(115200).Registry
}

// runContext never ends on hardware; the watchdog covers hangs.
func runContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
