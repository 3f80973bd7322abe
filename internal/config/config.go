// Package config loads the mapstream CLI configuration from layered JSONC
// files and command line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/mapstream/pkg/fs"
	"github.com/calvinalkan/mapstream/pkg/mapstream"
)

// Error variables for configuration loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
)

// FileName is the project config file name.
const FileName = ".mapstream.json"

// Config is the effective configuration.
type Config struct {
	ChunkShift     int    `json:"chunk_shift"`
	CacheMode      string `json:"cache_mode"`
	MapMode        string `json:"map_mode"`
	ShadowCapacity int    `json:"shadow_capacity"`
	Lock           bool   `json:"lock"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// Layer is one partial configuration. Nil fields leave the value below
// untouched. Config files decode into a Layer; CLI flags build one.
type Layer struct {
	ChunkShift     *int    `json:"chunk_shift,omitempty"`
	CacheMode      *string `json:"cache_mode,omitempty"`
	MapMode        *string `json:"map_mode,omitempty"`
	ShadowCapacity *int    `json:"shadow_capacity,omitempty"`
	Lock           *bool   `json:"lock,omitempty"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ChunkShift:     mapstream.DefaultChunkShift,
		CacheMode:      mapstream.CacheSoftEvict.String(),
		MapMode:        mapstream.MapReadOnly.String(),
		ShadowCapacity: mapstream.DefaultShadowCapacity,
	}
}

// Input holds the inputs for [Load].
type Input struct {
	WorkDir    string            // if empty, os.Getwd() is used
	ConfigPath string            // -c/--config flag value
	Overrides  Layer             // CLI flag overrides
	Env        map[string]string // environment variables
	FS         fs.FS             // nil uses the real filesystem
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/mapstream/config.json or ~/.config/mapstream/config.json)
// 3. Project config file (.mapstream.json, if it exists)
// 4. Explicit config file via ConfigPath (replaces the project file)
// 5. CLI overrides.
func Load(input Input) (Config, error) {
	fsys := input.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	workDir := input.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if path := globalPath(input.Env); path != "" {
		layer, loaded, err := loadFile(fsys, path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = cfg.merge(layer)
			cfg.Sources.Global = path
		}
	}

	path, mustExist := filepath.Join(workDir, FileName), false

	if input.ConfigPath != "" {
		path, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		if ok, _ := fsys.Exists(path); !ok {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}
	}

	layer, loaded, err := loadFile(fsys, path, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = cfg.merge(layer)
		cfg.Sources.Project = path
	}

	cfg = cfg.merge(input.Overrides)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// globalPath uses $XDG_CONFIG_HOME/mapstream/config.json if set, otherwise
// ~/.config/mapstream/config.json. Empty if neither is known.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "mapstream", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "mapstream", "config.json")
	}

	return ""
}

// loadFile reads one layer. If mustExist is false, a missing file is not an error.
func loadFile(fsys fs.FS, path string, mustExist bool) (Layer, bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if mustExist {
			return Layer{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
		}

		if errors.Is(err, os.ErrNotExist) {
			return Layer{}, false, nil
		}

		return Layer{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	layer, err := Parse(data)
	if err != nil {
		return Layer{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return layer, true, nil
}

// Parse decodes a JSONC config layer. Unknown keys are rejected.
func Parse(data []byte) (Layer, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Layer{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var layer Layer

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&layer); err != nil {
		return Layer{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return layer, nil
}

func (c Config) merge(l Layer) Config {
	if l.ChunkShift != nil {
		c.ChunkShift = *l.ChunkShift
	}

	if l.CacheMode != nil {
		c.CacheMode = *l.CacheMode
	}

	if l.MapMode != nil {
		c.MapMode = *l.MapMode
	}

	if l.ShadowCapacity != nil {
		c.ShadowCapacity = *l.ShadowCapacity
	}

	if l.Lock != nil {
		c.Lock = *l.Lock
	}

	return c
}

func (c Config) validate() error {
	if c.ChunkShift < mapstream.MinChunkShift || c.ChunkShift > mapstream.MaxChunkShift {
		return fmt.Errorf("chunk_shift must be within [%d, %d], got %d",
			mapstream.MinChunkShift, mapstream.MaxChunkShift, c.ChunkShift)
	}

	if c.ShadowCapacity < 1 {
		return fmt.Errorf("shadow_capacity must be >= 1, got %d", c.ShadowCapacity)
	}

	if _, err := mapstream.ParseCacheMode(c.CacheMode); err != nil {
		return fmt.Errorf("cache_mode: %w", err)
	}

	if _, err := mapstream.ParseMapMode(c.MapMode); err != nil {
		return fmt.Errorf("map_mode: %w", err)
	}

	return nil
}

// FileOptions converts c into options for [mapstream.Open].
func (c Config) FileOptions() (mapstream.FileOptions, error) {
	mapMode, err := mapstream.ParseMapMode(c.MapMode)
	if err != nil {
		return mapstream.FileOptions{}, err
	}

	cacheMode, err := mapstream.ParseCacheMode(c.CacheMode)
	if err != nil {
		return mapstream.FileOptions{}, err
	}

	return mapstream.FileOptions{
		Options: mapstream.Options{
			MapMode:        mapMode,
			CacheMode:      cacheMode,
			ChunkShift:     c.ChunkShift,
			ShadowCapacity: c.ShadowCapacity,
		},
		Lock: c.Lock,
	}, nil
}

// Format renders c as indented JSON.
func Format(c Config) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}
