package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"chatbox/internal/config"
)

func initMain(root rootArgs, args []string) {
	path, err := runInit(root, args)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	fmt.Printf("wrote %s\n", path)
}

// runInit 写出默认配置（叠加 -c 覆盖），已存在时需 -force。
func runInit(root rootArgs, args []string) (string, error) {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var force bool
	fs.BoolVar(&force, "force", false, "Overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	path := root.cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return "", errors.New("cannot resolve config path; pass -config")
	}
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	cfg := config.ApplyKVOverrides(config.Default(), root.overrides)
	if err := config.Save(path, cfg); err != nil {
		return "", err
	}
	return path, nil
}
