package config

import (
	"strconv"
	"strings"
)

// ApplyKVOverrides applies free-form -c key=value overrides.
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	if len(overrides) == 0 {
		return cfg
	}
	for _, raw := range overrides {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "url":
			cfg.URL = val
		case "token":
			cfg.Token = val
		case "user":
			cfg.User = val
		case "language":
			cfg.Language = val
		case "log_level":
			cfg.LogLevel = val
		case "log_path":
			cfg.LogPath = val
		case "upload.max_size_mb":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				cfg.Upload.MaxSizeMB = n
			}
		case "upload.max_files":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				cfg.Upload.MaxFiles = n
			}
		case "upload.accept":
			cfg.Upload.Accept = splitList(val)
		case "render.width":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				cfg.Render.Width = n
			}
		case "render.style":
			cfg.Render.Style = val
		case "render.cursor":
			cfg.Render.Cursor = val
		}
	}
	return cfg
}

func splitList(val string) []string {
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
