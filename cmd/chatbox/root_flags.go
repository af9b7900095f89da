package main

import (
	"flag"
	"io"
)

type rootArgs struct {
	cfgPath   string
	overrides []string
}

func parseRootArgs(args []string) (rootArgs, []string, error) {
	fs := flag.NewFlagSet("chatbox", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var overrides stringSlice
	var cfgPath string
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	fs.StringVar(&cfgPath, "config", "", "Path to config file (default ~/.chatbox/config.toml)")
	if err := fs.Parse(args); err != nil {
		return rootArgs{}, nil, err
	}
	return rootArgs{cfgPath: cfgPath, overrides: []string(overrides)}, fs.Args(), nil
}
