package main

import (
	"reflect"
	"testing"
)

func TestParseRootArgsWithoutFlags(t *testing.T) {
	orig := []string{"send", "-m", "测试"}
	root, rest, err := parseRootArgs(orig)
	if err != nil {
		t.Fatalf("parseRootArgs returned error: %v", err)
	}
	if len(root.overrides) != 0 || root.cfgPath != "" {
		t.Fatalf("expected empty root args, got %+v", root)
	}
	if !reflect.DeepEqual(rest, orig) {
		t.Fatalf("expected rest to preserve args %v, got %v", orig, rest)
	}
}

func TestParseRootArgsExtractsOverrides(t *testing.T) {
	args := []string{
		"-c", "url=http://localhost:8000",
		"-c=upload.max_files=3",
		"--config", "/tmp/chatbox.toml",
		"send", "-m", "hi",
	}
	root, rest, err := parseRootArgs(args)
	if err != nil {
		t.Fatalf("parseRootArgs returned error: %v", err)
	}
	expectedOverrides := []string{"url=http://localhost:8000", "upload.max_files=3"}
	if !reflect.DeepEqual(root.overrides, expectedOverrides) {
		t.Fatalf("unexpected overrides: got %v, want %v", root.overrides, expectedOverrides)
	}
	if root.cfgPath != "/tmp/chatbox.toml" {
		t.Fatalf("unexpected config path %q", root.cfgPath)
	}
	expectedRest := []string{"send", "-m", "hi"}
	if !reflect.DeepEqual(rest, expectedRest) {
		t.Fatalf("unexpected rest args: got %v, want %v", rest, expectedRest)
	}
}

func TestParseRootArgsRejectsUnknownFlag(t *testing.T) {
	if _, _, err := parseRootArgs([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown root flag")
	}
}
