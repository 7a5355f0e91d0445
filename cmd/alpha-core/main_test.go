// ABOUTME: Tests for alpha-core CLI helpers
// ABOUTME: Covers config path resolution, token flag parsing, and the color log handler

package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahi-governance/alpha-core/internal/config"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("ALPHA_CONFIG", "/etc/alpha/core.toml")
	assert.Equal(t, "/etc/alpha/core.toml", getConfigPath())

	t.Setenv("ALPHA_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "alpha", "core.yaml"), getConfigPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/alpha")
	assert.Equal(t, filepath.Join("/home/alpha", ".config", "alpha", "core.yaml"), getConfigPath())
}

func TestGetDataPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "alpha"), getDataPath())
}

func TestParseTokenArgs(t *testing.T) {
	ta, err := parseTokenArgs([]string{"--subject", "ops@ahi", "--ttl=2h", "--variant", "v2", "--variant=gen2"})
	require.NoError(t, err)
	assert.Equal(t, "ops@ahi", ta.subject)
	assert.Equal(t, 2*time.Hour, ta.ttl)
	assert.Equal(t, []string{"v2", "gen2"}, ta.variants)

	ta, err = parseTokenArgs([]string{"-s=ops@ahi"})
	require.NoError(t, err)
	assert.Equal(t, defaultTokenTTL, ta.ttl)
	assert.Empty(t, ta.variants)
}

func TestParseTokenArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no subject", nil, "--subject flag is required"},
		{"blank subject", []string{"--subject", "  "}, "--subject flag is required"},
		{"dangling flag", []string{"--subject"}, "requires a value"},
		{"bad ttl", []string{"--subject", "x", "--ttl", "soon"}, "parsing --ttl"},
		{"negative ttl", []string{"--subject", "x", "--ttl", "-1h"}, "must be positive"},
		{"unknown flag", []string{"--subject", "x", "--admin"}, "unknown flag"},
		{"positional", []string{"x"}, "unexpected argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTokenArgs(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckTokenVariants(t *testing.T) {
	cfg := &config.Config{Variants: []config.VariantConfig{
		{Name: "alpha", Invoker: config.InvokerPublic},
		{Name: "v2", Invoker: config.InvokerPrivate},
	}}

	assert.NoError(t, checkTokenVariants(cfg, nil))
	assert.NoError(t, checkTokenVariants(cfg, []string{"v2"}))
	assert.ErrorContains(t, checkTokenVariants(cfg, []string{"gen3"}), "unknown variant")
	assert.ErrorContains(t, checkTokenVariants(cfg, []string{"alpha"}), "is public")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	h := &colorHandler{out: &buf, mu: &sync.Mutex{}, level: slog.LevelInfo}
	logger := slog.New(h).With("component", "gateway")

	logger.Debug("hidden")
	logger.Info("node ignited", "id", "abc")
	logger.WithGroup("req").Warn("slow", "ms", 1200)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INF node ignited component=gateway id=abc")
	assert.Contains(t, lines[1], "WRN slow component=gateway req.ms=1200")
}
