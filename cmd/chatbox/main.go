package main

import (
	"fmt"
	"os"

	"chatbox/internal/config"
	"chatbox/internal/logger"
	"chatbox/internal/render"
	"chatbox/internal/tui"
)

var log = logger.Named("main")

func main() {
	root, rest, err := parseRootArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse args: %v\n", err)
		os.Exit(2)
	}
	cfg, err := loadConfig(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Configure(cfg.LogLevel)
	if logFile, _, err := logger.SetupFile(cfg.LogPath); err != nil {
		log.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}

	if len(rest) > 0 {
		switch rest[0] {
		case "send":
			sendMain(cfg, rest[1:])
			return
		case "init":
			initMain(root, rest[1:])
			return
		}
	}
	runInteractive(cfg)
}

func loadConfig(root rootArgs) (config.Config, error) {
	cfg, err := config.Load(root.cfgPath)
	if err != nil {
		return cfg, err
	}
	cfg = config.ApplyKVOverrides(cfg, root.overrides)
	if cfg.LogPath == "" {
		cfg.LogPath = logger.DefaultLogPath
	}
	return cfg, nil
}

func runInteractive(cfg config.Config) {
	a, err := newApp(cfg, nil)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	term, err := render.NewTerminal(render.TerminalConfig{
		Width:  cfg.Render.Width,
		Style:  cfg.Render.Style,
		Cursor: cfg.Render.Cursor,
	})
	if err != nil {
		log.Warnf("markdown rendering disabled: %v", err)
		term = nil
	}
	if err := tui.Run(tui.Options{Session: a.session, Terminal: term, Cursor: cfg.Render.Cursor}); err != nil {
		log.Fatalf("tui: %v", err)
	}
}
