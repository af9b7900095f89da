package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatbox/internal/config"
	"chatbox/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.LogPath = ""
	cfg.URL = ""
	return cfg
}

func testLoopback() *transport.Loopback {
	return &transport.Loopback{ChunkRunes: 4, BlockSize: 8, Prefix: "echo: "}
}

func TestRunSendPrintsFinalReply(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runSend(testConfig(), []string{"-m", "hello there"}, testLoopback(), &out, &errOut)
	require.NoError(t, err)
	assert.Equal(t, "echo: hello there\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestRunSendUploadsAttachments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes for the server"), 0o644))

	var out, errOut bytes.Buffer
	err := runSend(testConfig(), []string{"-m", "see file", "-a", path}, testLoopback(), &out, &errOut)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "echo: see file\n\nfiles: file-"), out.String())
}

func TestRunSendReportsMissingAttachment(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runSend(testConfig(), []string{"-a", filepath.Join(t.TempDir(), "missing.txt")}, testLoopback(), &out, &errOut)
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunSendReply(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runSend(testConfig(), []string{"-reply", "thanks"}, testLoopback(), &out, &errOut)
	require.NoError(t, err)
	assert.Equal(t, "echo: thanks\n", out.String())
}

func TestRunSendRendersHTML(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runSend(testConfig(), []string{"-format", "html", "-m", "**hi**"}, testLoopback(), &out, &errOut)
	require.NoError(t, err)
	assert.Equal(t, "<p>echo: <strong>hi</strong></p>\n", out.String())
}

func TestRunSendReportsRejectionsWhileUploading(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("x"), 4000), 0o644))
	extra := filepath.Join(dir, "extra.txt")
	require.NoError(t, os.WriteFile(extra, []byte("extra"), 0o644))

	cfg := testConfig()
	cfg.Upload.MaxFiles = 1
	lb := testLoopback()
	lb.BlockSize = 1

	var out, errOut bytes.Buffer
	err := runSend(cfg, []string{"-m", "two files", "-a", big, "-a", extra}, lb, &out, &errOut)
	require.NoError(t, err)
	assert.Equal(t, "[error] Cannot attach extra.txt: at most 1 files per message\n", errOut.String())
	assert.True(t, strings.HasPrefix(out.String(), "echo: two files\n\nfiles: file-"), out.String())
	assert.Equal(t, 1, strings.Count(out.String(), "file-"))
}

func TestParseSendArgs(t *testing.T) {
	_, err := parseSendArgs(nil)
	assert.Error(t, err)

	_, err = parseSendArgs([]string{"-reply", "-a", "x.txt", "hi"})
	assert.Error(t, err)

	_, err = parseSendArgs([]string{"-format", "pdf", "-m", "hi"})
	assert.Error(t, err)

	sa, err := parseSendArgs([]string{"-a", "a.txt", "-a", "b.txt", "two", "words"})
	require.NoError(t, err)
	assert.Equal(t, "two words", sa.text)
	assert.Equal(t, stringSlice{"a.txt", "b.txt"}, sa.files)
	assert.Equal(t, formatPlain, sa.format)
}

func TestRunInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	root := rootArgs{cfgPath: path, overrides: []string{"user=alice"}}

	got, err := runInit(root, nil)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.User)

	_, err = runInit(root, nil)
	assert.Error(t, err)
	_, err = runInit(root, []string{"-force"})
	assert.NoError(t, err)
}
