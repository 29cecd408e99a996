// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/J-x-Z/winpipe/lib/compress"
)

// EnvironmentVariable names the configuration file when --config is
// not given.
const EnvironmentVariable = "WINPIPE_CONFIG"

// Config is the server configuration.
type Config struct {
	// Listen is the TCP address clients connect to.
	Listen string `yaml:"listen"`

	// MetricsListen is the address of the operator HTTP endpoint
	// (/metrics, /healthz, /sessions). Empty disables it.
	MetricsListen string `yaml:"metrics_listen"`

	// IdleTimeout closes a connection that has sent nothing for this
	// long. Zero disables the timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxFrameSize bounds the payload of a frame in either direction.
	MaxFrameSize int `yaml:"max_frame_size"`

	Backpressure BackpressureConfig `yaml:"backpressure"`
	Compression  CompressionConfig  `yaml:"compression"`
	Output       OutputConfig       `yaml:"output"`
	Shm          ShmConfig          `yaml:"shm"`
	Seat         SeatConfig         `yaml:"seat"`
}

// BackpressureConfig sets the send queue marks, in bytes. A connection
// stops reading from its client while more than HighWater bytes are
// queued toward the renderer, and resumes at LowWater.
type BackpressureConfig struct {
	HighWater int `yaml:"high_water"`
	LowWater  int `yaml:"low_water"`
}

// CompressionConfig tunes delta record compression.
type CompressionConfig struct {
	// Codec is one of none, lz4, zstd or planar_lz4.
	Codec string `yaml:"codec"`

	// BlockSize is the size of each independently compressed block
	// of packed pixels.
	BlockSize int `yaml:"block_size"`

	// MinCompressSize is the smallest block worth compressing.
	// Smaller blocks are sent raw.
	MinCompressSize int `yaml:"min_compress_size"`
}

// OutputConfig describes the single advertised wl_output.
type OutputConfig struct {
	Width            int32  `yaml:"width"`
	Height           int32  `yaml:"height"`
	RefreshMHz       int32  `yaml:"refresh_mhz"`
	PhysicalWidthMM  int32  `yaml:"physical_width_mm"`
	PhysicalHeightMM int32  `yaml:"physical_height_mm"`
	Make             string `yaml:"make"`
	Model            string `yaml:"model"`
	Scale            int32  `yaml:"scale"`
}

// ShmConfig controls shared memory support.
type ShmConfig struct {
	// MirroredPools accepts wl_shm.create_pool, with pool content
	// delivered through mirror-write frames. When false, pools are
	// rejected because file descriptors cannot cross TCP.
	MirroredPools bool `yaml:"mirrored_pools"`
}

// SeatConfig describes the advertised wl_seat.
type SeatConfig struct {
	Name        string `yaml:"name"`
	RepeatRate  int32  `yaml:"repeat_rate"`
	RepeatDelay int32  `yaml:"repeat_delay"`
}

// Default returns the configuration used when no file is given. Every
// field has a usable value, and a file only needs the fields it
// changes.
func Default() *Config {
	return &Config{
		Listen:       "0.0.0.0:9999",
		MaxFrameSize: 16 * 1024 * 1024,
		Backpressure: BackpressureConfig{
			HighWater: 4 * 1024 * 1024,
			LowWater:  1024 * 1024,
		},
		Compression: CompressionConfig{
			Codec:           "lz4",
			BlockSize:       64 * 1024,
			MinCompressSize: 256,
		},
		Output: OutputConfig{
			Width:            1920,
			Height:           1080,
			RefreshMHz:       60000,
			PhysicalWidthMM:  527,
			PhysicalHeightMM: 296,
			Make:             "Winpipe",
			Model:            "Virtual Display",
			Scale:            1,
		},
		Shm: ShmConfig{MirroredPools: true},
		Seat: SeatConfig{
			Name:        "seat0",
			RepeatRate:  25,
			RepeatDelay: 600,
		},
	}
}

// Load reads the file named by WINPIPE_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads a configuration file over the defaults. Files ending
// in .json or .jsonc are JSON with comments and trailing commas;
// anything else is YAML. ${VAR} and ${VAR:-default} are expanded in the
// address fields afterwards.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration data over the defaults. ext selects the
// format the way a file extension does in LoadFile.
func Parse(data []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so the stripped document decodes
		// through the same yaml tags.
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands environment references in the fields that
// hold addresses.
func (c *Config) expandVariables() {
	c.Listen = expandVars(c.Listen)
	c.MetricsListen = expandVars(c.MetricsListen)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. An unset or empty
// variable without a default expands to the empty string.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout))
	}
	if c.MaxFrameSize < 4096 {
		errs = append(errs, fmt.Errorf("max_frame_size must be at least 4096, got %d", c.MaxFrameSize))
	}

	if c.Backpressure.HighWater <= 0 {
		errs = append(errs, fmt.Errorf("backpressure.high_water must be positive, got %d", c.Backpressure.HighWater))
	}
	if c.Backpressure.LowWater < 0 || c.Backpressure.LowWater >= c.Backpressure.HighWater {
		errs = append(errs, fmt.Errorf("backpressure.low_water must be between 0 and high_water (%d), got %d",
			c.Backpressure.HighWater, c.Backpressure.LowWater))
	}

	if _, err := compress.ParseTag(c.Compression.Codec); err != nil {
		errs = append(errs, fmt.Errorf("compression.codec: %w", err))
	}
	if c.Compression.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("compression.block_size must be positive, got %d", c.Compression.BlockSize))
	}
	if c.Compression.MinCompressSize < 0 {
		errs = append(errs, fmt.Errorf("compression.min_compress_size must not be negative, got %d", c.Compression.MinCompressSize))
	}
	if c.Compression.BlockSize > c.MaxFrameSize {
		errs = append(errs, fmt.Errorf("compression.block_size %d exceeds max_frame_size %d", c.Compression.BlockSize, c.MaxFrameSize))
	}

	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		errs = append(errs, fmt.Errorf("output size must be positive, got %dx%d", c.Output.Width, c.Output.Height))
	}
	if c.Output.RefreshMHz <= 0 {
		errs = append(errs, fmt.Errorf("output.refresh_mhz must be positive, got %d", c.Output.RefreshMHz))
	}
	if c.Output.Scale <= 0 {
		errs = append(errs, fmt.Errorf("output.scale must be positive, got %d", c.Output.Scale))
	}

	if c.Seat.Name == "" {
		errs = append(errs, errors.New("seat.name is required"))
	}
	if c.Seat.RepeatRate < 0 || c.Seat.RepeatDelay < 0 {
		errs = append(errs, fmt.Errorf("seat repeat rate and delay must not be negative, got %d and %d",
			c.Seat.RepeatRate, c.Seat.RepeatDelay))
	}

	return errors.Join(errs...)
}
