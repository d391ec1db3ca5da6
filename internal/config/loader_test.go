package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoader(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) []string
		wantErr string
		assert  func(t *testing.T, cfg Config)
	}{
		{
			name:  "returns defaults when no overrides",
			setup: func(t *testing.T) []string { return nil },
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 8080, cfg.Server.Listen.Port)
				require.Equal(t, BackendMemory, cfg.Cache.Store.Backend)
				require.True(t, cfg.Cache.Enabled)
				require.Empty(t, cfg.Routes)
			},
		},
		{
			name: "merges yaml overrides",
			setup: func(t *testing.T) []string {
				return []string{writeFile(t, "cacher.yaml", "server:\n  listen:\n    port: 9090\n")}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9090, cfg.Server.Listen.Port)
				require.Equal(t, "X-Cacher-Hit", cfg.Cache.DiagnosticHeader)
			},
		},
		{
			name: "merges json overrides",
			setup: func(t *testing.T) []string {
				return []string{writeFile(t, "cacher.json", `{"cache":{"generationWindowSeconds":5,"store":{"backend":"sqlite"}}}`)}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 5, cfg.Cache.GenerationWindowSeconds)
				require.Equal(t, BackendSQLite, cfg.Cache.Store.Backend)
			},
		},
		{
			name: "merges toml overrides",
			setup: func(t *testing.T) []string {
				contents := "[upstream]\nurl = \"https://origin.internal\"\n\n[[routes]]\npath = \"/\"\nunit = \"minute\"\nmultiplier = 5\n"
				return []string{writeFile(t, "cacher.toml", contents)}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "https://origin.internal", cfg.Upstream.URL)
				require.Len(t, cfg.Routes, 1)
				require.NotNil(t, cfg.Routes[0].Multiplier)
				require.Equal(t, 5, *cfg.Routes[0].Multiplier)
			},
		},
		{
			name: "prefers env overrides",
			setup: func(t *testing.T) []string {
				t.Setenv("CACHER_SERVER__LISTEN__PORT", "9091")
				t.Setenv("CACHER_CACHE__HONOR_CLIENT_NO_CACHE", "false")
				t.Setenv("CACHER_CACHE__STORE__KEY_PREFIX", "edge:")
				return []string{writeFile(t, "cacher.yaml", "server:\n  listen:\n    port: 9090\n")}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9091, cfg.Server.Listen.Port)
				require.False(t, cfg.Cache.HonorClientNoCache)
				require.Equal(t, "edge:", cfg.Cache.Store.KeyPrefix)
			},
		},
		{
			name: "reads routes",
			setup: func(t *testing.T) []string {
				contents := "routes:\n  - path: /\n    unit: minute\n  - path: /static\n    unit: days\n    multiplier: 7\n  - path: /api/live\n    disabled: true\n"
				return []string{writeFile(t, "cacher.yaml", contents)}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Len(t, cfg.Routes, 3)
				d, err := cfg.Routes[1].Directive()
				require.NoError(t, err)
				seconds, err := d.Seconds()
				require.NoError(t, err)
				require.Equal(t, 7*86400, seconds)

				d, err = cfg.Routes[2].Directive()
				require.NoError(t, err)
				require.False(t, d.Enabled())
			},
		},
		{
			name: "fails when file missing",
			setup: func(t *testing.T) []string {
				return []string{filepath.Join(t.TempDir(), "missing.yaml")}
			},
			wantErr: "not found",
		},
		{
			name: "fails on unsupported extension",
			setup: func(t *testing.T) []string {
				return []string{writeFile(t, "cacher.ini", "port=1")}
			},
			wantErr: "unsupported config file extension",
		},
		{
			name: "fails on unknown route unit",
			setup: func(t *testing.T) []string {
				return []string{writeFile(t, "cacher.yaml", "routes:\n  - path: /\n    unit: fortnight\n")}
			},
			wantErr: "fortnight",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := tc.setup(t)
			cfg, err := NewLoader(DefaultEnvPrefix, files...).Load(context.Background())
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.assert(t, cfg)
		})
	}
}

func TestLoaderHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader("", writeFile(t, "cacher.yaml", "{}\n")).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
