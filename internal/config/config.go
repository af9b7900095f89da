package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Upload 限制附件的大小、数量与可接受的 MIME 类型。
type Upload struct {
	MaxSizeMB int      `toml:"max_size_mb"`
	MaxFiles  int      `toml:"max_files"`
	Accept    []string `toml:"accept"`
}

// Render 控制流式回复在终端中的渲染方式。
type Render struct {
	Width  int    `toml:"width"`
	Style  string `toml:"style"`
	Cursor string `toml:"cursor"`
}

// Config is the only persisted config file schema.
type Config struct {
	URL      string `toml:"url"`
	Token    string `toml:"token"`
	User     string `toml:"user"`
	Language string `toml:"language"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	Upload   Upload `toml:"upload"`
	Render   Render `toml:"render"`
	Source   string `toml:"-"`
}

func Default() Config {
	return Config{
		Language: "en",
		LogLevel: "info",
		Upload: Upload{
			MaxSizeMB: 500,
			MaxFiles:  20,
			Accept:    []string{"*/*"},
		},
		Render: Render{
			Width:  100,
			Style:  "auto",
			Cursor: "▍",
		},
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".chatbox", "config.toml")
}

// Load 读取 TOML 配置；文件不存在时使用默认值。环境变量优先级高于文件。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return applyEnv(cfg).withDefaults(), nil
}

func (c Config) withDefaults() Config {
	def := Default()
	if c.Upload.MaxSizeMB <= 0 {
		c.Upload.MaxSizeMB = def.Upload.MaxSizeMB
	}
	if c.Upload.MaxFiles <= 0 {
		c.Upload.MaxFiles = def.Upload.MaxFiles
	}
	if len(c.Upload.Accept) == 0 {
		c.Upload.Accept = def.Upload.Accept
	}
	if c.Render.Width <= 0 {
		c.Render.Width = def.Render.Width
	}
	if c.Render.Style == "" {
		c.Render.Style = def.Render.Style
	}
	if c.Render.Cursor == "" {
		c.Render.Cursor = def.Render.Cursor
	}
	return c
}

func applyEnv(cfg Config) Config {
	if env := strings.TrimSpace(os.Getenv("CHATBOX_URL")); env != "" {
		cfg.URL = env
	}
	if env := strings.TrimSpace(os.Getenv("CHATBOX_TOKEN")); env != "" {
		cfg.Token = env
	}
	return cfg
}
