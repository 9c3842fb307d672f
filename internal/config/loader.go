package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	DataDir   string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	UploadDir string `json:"upload_dir" yaml:"upload_dir" toml:"upload_dir"`
	OutputDir string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	// DBPath is the sqlite task table; defaults to <data_dir>/tasks.db.
	DBPath string `json:"db_path" yaml:"db_path" toml:"db_path"`
	// Device is auto, cuda, mps or cpu.
	Device           string   `json:"device" yaml:"device" toml:"device"`
	Precision        string   `json:"precision" yaml:"precision" toml:"precision"`
	DefaultModelSize string   `json:"default_model_size" yaml:"default_model_size" toml:"default_model_size"`
	ModelPrefix      string   `json:"model_prefix" yaml:"model_prefix" toml:"model_prefix"`
	CheckpointsDir   string   `json:"checkpoints_dir" yaml:"checkpoints_dir" toml:"checkpoints_dir"`
	ChunkDuration    Duration `json:"chunk_duration" yaml:"chunk_duration" toml:"chunk_duration"`
	QueueDepth       int      `json:"queue_depth" yaml:"queue_depth" toml:"queue_depth"`
	JobTimeout       Duration `json:"job_timeout" yaml:"job_timeout" toml:"job_timeout"`
	ResultTTL        Duration `json:"result_ttl" yaml:"result_ttl" toml:"result_ttl"`
	JanitorInterval  Duration `json:"janitor_interval" yaml:"janitor_interval" toml:"janitor_interval"`
	FFmpegBin        string   `json:"ffmpeg_bin" yaml:"ffmpeg_bin" toml:"ffmpeg_bin"`
	OutputBitDepth   int      `json:"output_bit_depth" yaml:"output_bit_depth" toml:"output_bit_depth"`
	MaxUploadMB      int      `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`
	// SubmitRate is submissions per second across all clients; 0 disables
	// the limiter.
	SubmitRate  float64 `json:"submit_rate" yaml:"submit_rate" toml:"submit_rate"`
	SubmitBurst int     `json:"submit_burst" yaml:"submit_burst" toml:"submit_burst"`
	// AllowEmptyToken lets jobs run without a hub token, for runtimes that
	// load checkpoints from local disk.
	AllowEmptyToken bool `json:"allow_empty_token" yaml:"allow_empty_token" toml:"allow_empty_token"`

	Runtime RuntimeConfig `json:"runtime" yaml:"runtime" toml:"runtime"`
	Log     LogConfig     `json:"log" yaml:"log" toml:"log"`
	CORS    CORSConfig    `json:"cors" yaml:"cors" toml:"cors"`
}

// RuntimeConfig selects the separation runtime. With URL set the service
// attaches to an external runtime; otherwise it spawns Bin per slot.
type RuntimeConfig struct {
	Bin          string   `json:"bin" yaml:"bin" toml:"bin"`
	Host         string   `json:"host" yaml:"host" toml:"host"`
	PortStart    int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd      int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	ExtraArgs    []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
	ReadyTimeout Duration `json:"ready_timeout" yaml:"ready_timeout" toml:"ready_timeout"`
	URL          string   `json:"url" yaml:"url" toml:"url"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
	// File enables rotated file output in addition to stderr.
	File       string `json:"file" yaml:"file" toml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
}

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Duration is a time.Duration that reads "25s"-style strings from every
// supported file format.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
