package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oulianov/audioghost-ai/internal/common/fsutil"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/registry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GHOSTD_"

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills unspecified fields. Directory defaults hang off
// DataDir, so set DataDir before calling it.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.DataDir == "" {
		c.DataDir = "~/.audioghost"
	}
	c.DataDir = expandHome(c.DataDir)
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.DataDir, "outputs")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "tasks.db")
	}
	if c.CheckpointsDir == "" {
		c.CheckpointsDir = filepath.Join(c.DataDir, "checkpoints")
	}
	c.UploadDir = expandHome(c.UploadDir)
	c.OutputDir = expandHome(c.OutputDir)
	c.DBPath = expandHome(c.DBPath)
	c.CheckpointsDir = expandHome(c.CheckpointsDir)
	if c.Device == "" {
		c.Device = "auto"
	}
	if c.DefaultModelSize == "" {
		c.DefaultModelSize = registry.DefaultSize
	}
	if c.ModelPrefix == "" {
		c.ModelPrefix = registry.DefaultPrefix
	}
	if c.ChunkDuration == 0 {
		c.ChunkDuration = Duration(25 * time.Second)
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = 16
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = Duration(time.Hour)
	}
	if c.ResultTTL == 0 {
		c.ResultTTL = Duration(24 * time.Hour)
	}
	if c.JanitorInterval == 0 {
		c.JanitorInterval = Duration(10 * time.Minute)
	}
	if c.FFmpegBin == "" {
		c.FFmpegBin = "ffmpeg"
	}
	if c.OutputBitDepth == 0 {
		c.OutputBitDepth = 16
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 500
	}
	if c.SubmitRate > 0 && c.SubmitBurst == 0 {
		c.SubmitBurst = int(c.SubmitRate) + 1
	}
	if c.Runtime.Bin == "" && c.Runtime.URL == "" {
		c.Runtime.Bin = "sam-audio-runtime"
	}
	if c.Runtime.Host == "" {
		c.Runtime.Host = "127.0.0.1"
	}
	if c.Runtime.ReadyTimeout == 0 {
		c.Runtime.ReadyTimeout = Duration(10 * time.Minute)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if len(c.CORS.Origins) == 0 {
		c.CORS.Origins = []string{"*"}
	}
	if len(c.CORS.Methods) == 0 {
		c.CORS.Methods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.CORS.Headers) == 0 {
		c.CORS.Headers = []string{"Accept", "Authorization", "Content-Type"}
	}
	return c
}

// expandHome leaves p untouched when the home directory is unknown.
func expandHome(p string) string {
	if out, err := fsutil.ExpandHome(p); err == nil {
		return out
	}
	return p
}

// ApplyEnv overlays GHOSTD_* environment variables onto c.
func (c Config) ApplyEnv() (Config, error) {
	str := map[string]*string{
		"ADDR":               &c.Addr,
		"DATA_DIR":           &c.DataDir,
		"UPLOAD_DIR":         &c.UploadDir,
		"OUTPUT_DIR":         &c.OutputDir,
		"DB_PATH":            &c.DBPath,
		"DEVICE":             &c.Device,
		"PRECISION":          &c.Precision,
		"DEFAULT_MODEL_SIZE": &c.DefaultModelSize,
		"MODEL_PREFIX":       &c.ModelPrefix,
		"CHECKPOINTS_DIR":    &c.CheckpointsDir,
		"FFMPEG_BIN":         &c.FFmpegBin,
		"RUNTIME_BIN":        &c.Runtime.Bin,
		"RUNTIME_HOST":       &c.Runtime.Host,
		"RUNTIME_URL":        &c.Runtime.URL,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"LOG_FILE":           &c.Log.File,
	}
	for k, p := range str {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			*p = strings.TrimSpace(v)
		}
	}
	ints := map[string]*int{
		"QUEUE_DEPTH":      &c.QueueDepth,
		"OUTPUT_BIT_DEPTH": &c.OutputBitDepth,
		"MAX_UPLOAD_MB":    &c.MaxUploadMB,
		"SUBMIT_BURST":     &c.SubmitBurst,
	}
	for k, p := range ints {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return c, fmt.Errorf("%s%s: %w", EnvPrefix, k, err)
			}
			*p = n
		}
	}
	durs := map[string]*Duration{
		"CHUNK_DURATION": &c.ChunkDuration,
		"JOB_TIMEOUT":    &c.JobTimeout,
		"RESULT_TTL":     &c.ResultTTL,
	}
	for k, p := range durs {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			if err := p.UnmarshalText([]byte(v)); err != nil {
				return c, fmt.Errorf("%s%s: %w", EnvPrefix, k, err)
			}
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SUBMIT_RATE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return c, fmt.Errorf("%sSUBMIT_RATE: %w", EnvPrefix, err)
		}
		c.SubmitRate = f
	}
	if v, ok := os.LookupEnv(EnvPrefix + "ALLOW_EMPTY_TOKEN"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return c, fmt.Errorf("%sALLOW_EMPTY_TOKEN: %w", EnvPrefix, err)
		}
		c.AllowEmptyToken = b
	}
	return c, nil
}

// Validate checks ranges on a defaulted config.
func (c Config) Validate() error {
	var errs []string
	if _, err := model.ParseDevice(c.Device); err != nil {
		errs = append(errs, err.Error())
	}
	switch strings.ToLower(c.Precision) {
	case "", string(model.PrecisionBF16), string(model.PrecisionFP32):
	default:
		errs = append(errs, fmt.Sprintf("unknown precision %q", c.Precision))
	}
	if _, err := registry.ParseSize(c.DefaultModelSize); err != nil {
		errs = append(errs, err.Error())
	}
	if d := c.ChunkDuration.D(); d < 5*time.Second || d > 60*time.Second {
		errs = append(errs, fmt.Sprintf("chunk_duration %s outside [5s, 60s]", d))
	}
	if c.QueueDepth < 1 {
		errs = append(errs, "queue_depth must be >= 1")
	}
	if c.JobTimeout <= 0 {
		errs = append(errs, "job_timeout must be positive")
	}
	if c.ResultTTL <= 0 {
		errs = append(errs, "result_ttl must be positive")
	}
	if c.OutputBitDepth != 16 && c.OutputBitDepth != 24 && c.OutputBitDepth != 32 {
		errs = append(errs, fmt.Sprintf("output_bit_depth %d not one of 16, 24, 32", c.OutputBitDepth))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, "max_upload_mb must be >= 1")
	}
	if c.SubmitRate < 0 || c.SubmitBurst < 0 {
		errs = append(errs, "submit_rate and submit_burst must not be negative")
	}
	if (c.Runtime.PortStart == 0) != (c.Runtime.PortEnd == 0) || c.Runtime.PortEnd < c.Runtime.PortStart {
		errs = append(errs, fmt.Sprintf("runtime port range %d-%d is invalid", c.Runtime.PortStart, c.Runtime.PortEnd))
	}
	if c.Runtime.Bin == "" && c.Runtime.URL == "" {
		errs = append(errs, "runtime.bin or runtime.url is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q not one of json, console", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
