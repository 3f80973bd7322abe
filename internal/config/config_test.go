package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/mapstream/internal/config"
	"github.com/calvinalkan/mapstream/pkg/fs"
	"github.com/calvinalkan/mapstream/pkg/mapstream"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func ptr[T any](v T) *T { return &v }

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.Input{WorkDir: dir, Env: map[string]string{"HOME": dir}})
	require.NoError(t, err)

	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_Load_Applies_Layers_In_Order_When_All_Are_Present(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := filepath.Join(dir, "xdg")

	writeFile(t, filepath.Join(xdg, "mapstream", "config.json"), `{
		// global defaults
		"chunk_shift": 20,
		"cache_mode": "no-evict",
		"lock": true,
	}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{"chunk_shift": 22, "map_mode": "rw"}`)

	cfg, err := config.Load(config.Input{
		WorkDir:   dir,
		Env:       map[string]string{"XDG_CONFIG_HOME": xdg},
		Overrides: config.Layer{ShadowCapacity: ptr(8), Lock: ptr(false)},
	})
	require.NoError(t, err)

	want := config.Config{
		ChunkShift:     22,
		CacheMode:      "no-evict",
		MapMode:        "rw",
		ShadowCapacity: 8,
		Lock:           false,
		Sources: config.Sources{
			Global:  filepath.Join(xdg, "mapstream", "config.json"),
			Project: filepath.Join(dir, config.FileName),
		},
	}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_Load_Uses_Home_Config_When_XDG_Is_Unset(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".config", "mapstream", "config.json"), `{"cache_mode": "hard"}`)

	cfg, err := config.Load(config.Input{WorkDir: t.TempDir(), Env: map[string]string{"HOME": home}})
	require.NoError(t, err)

	assert.Equal(t, "hard", cfg.CacheMode)
	assert.Equal(t, filepath.Join(home, ".config", "mapstream", "config.json"), cfg.Sources.Global)
}

func Test_Load_Replaces_Project_File_When_Explicit_Config_Is_Given(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{"chunk_shift": 22}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"shadow_capacity": 2}`)

	cfg, err := config.Load(config.Input{WorkDir: dir, ConfigPath: "custom.json"})
	require.NoError(t, err)

	assert.Equal(t, mapstream.DefaultChunkShift, cfg.ChunkShift)
	assert.Equal(t, 2, cfg.ShadowCapacity)
	assert.Equal(t, filepath.Join(dir, "custom.json"), cfg.Sources.Project)
}

func Test_Load_Returns_Error_When_Config_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
		msg     string
	}{
		{name: "broken JSONC", content: `{"chunk_shift": }`, want: config.ErrConfigInvalid, msg: "invalid JSONC"},
		{name: "unknown key", content: `{"ticket_dir": "x"}`, want: config.ErrConfigInvalid, msg: "unknown field"},
		{name: "wrong type", content: `{"lock": "yes"}`, want: config.ErrConfigInvalid, msg: "invalid JSON"},
		{name: "chunk shift too small", content: `{"chunk_shift": 2}`, msg: "chunk_shift must be within"},
		{name: "unknown cache mode", content: `{"cache_mode": "lru"}`, want: mapstream.ErrInvalidArgument, msg: "cache_mode"},
		{name: "unknown map mode", content: `{"map_mode": "exec"}`, want: mapstream.ErrInvalidArgument, msg: "map_mode"},
		{name: "zero shadow capacity", content: `{"shadow_capacity": 0}`, msg: "shadow_capacity must be >= 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), tt.content)

			_, err := config.Load(config.Input{WorkDir: dir})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)

			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want=%v", err, tt.want)
			}
		})
	}
}

func Test_Load_Returns_ErrConfigFileNotFound_When_Explicit_Config_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.Input{WorkDir: t.TempDir(), ConfigPath: "nope.json"})
	assert.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func Test_Load_Returns_ErrConfigFileRead_When_Read_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{}`)

	chaos := fs.NewChaos(fs.NewReal(), 7, fs.ChaosConfig{ReadFailRate: 1.0})

	_, err := config.Load(config.Input{WorkDir: dir, FS: chaos})
	assert.ErrorIs(t, err, config.ErrConfigFileRead)
	assert.True(t, fs.IsChaosErr(err))
}

func Test_FileOptions_Parses_Modes_When_Config_Is_Valid(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.MapMode = "private"
	cfg.CacheMode = "no-evict"
	cfg.ChunkShift = 16
	cfg.Lock = true

	opts, err := cfg.FileOptions()
	require.NoError(t, err)

	assert.Equal(t, mapstream.MapPrivate, opts.MapMode)
	assert.Equal(t, mapstream.CacheNoEvict, opts.CacheMode)
	assert.Equal(t, 16, opts.ChunkShift)
	assert.Equal(t, mapstream.DefaultShadowCapacity, opts.ShadowCapacity)
	assert.True(t, opts.Lock)
}

func Test_Format_Omits_Sources_When_Rendering(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Sources.Global = "/etc/x"

	out, err := config.Format(cfg)
	require.NoError(t, err)

	assert.Contains(t, out, `"cache_mode": "soft-evict"`)
	assert.NotContains(t, out, "/etc/x")
}
