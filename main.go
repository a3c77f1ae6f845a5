/*
Loads a model onto the best available GPU and keeps it resident until the
window is closed. With model.watch enabled the model is reloaded whenever it
changes on disk.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/dubu/engine"
	"github.com/spaghettifunk/dubu/engine/config"
	"github.com/spaghettifunk/dubu/engine/core"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration")
	modelPath := flag.String("model", "", "model to load, overrides model.path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(cfg)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogError("Engine initialization failed: %s", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		sig := <-sigCh
		core.LogInfo("Received %s, stopping.", sig)
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if runErr != nil {
		core.LogFatal(runErr.Error())
	}
}
