/*
Testbed application driving the frame loop with a pulsing clear color.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/framer/engine"
	"github.com/spaghettifunk/framer/engine/config"
	"github.com/spaghettifunk/framer/testbed"
)

func main() {
	configPath := flag.String("config", "framer.toml", "path to the TOML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tg := testbed.NewTestGame()
	e, err := engine.New(tg.Game, cfg, configPath)
	if err != nil {
		return err
	}
	defer func() {
		if serr := e.Shutdown(); serr != nil && err == nil {
			err = serr
		}
	}()

	if err := e.Initialize(); err != nil {
		return err
	}

	// capture sigterm and other system calls here
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	return e.Run(ctx)
}
