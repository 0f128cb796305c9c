// Package config holds the settings of the detector binary. Values come from
// defaults, then an optional YAML file, then command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tutortoise/dog-breed-detector/detections"
	"github.com/Tutortoise/dog-breed-detector/engines"
)

type Config struct {
	Assets AssetsConfig `yaml:"assets"`
	Engine EngineConfig `yaml:"engine"`
	Image  ImageConfig  `yaml:"image"`
	Server ServerConfig `yaml:"server"`
	Debug  bool         `yaml:"debug"`
}

type AssetsConfig struct {
	// Location is a local directory or a URL such as s3://bucket/prefix.
	Location string `yaml:"location"`
	Labels   string `yaml:"labels"`
	Model    string `yaml:"model"`
}

type EngineConfig struct {
	Backend        string `yaml:"backend"`
	LibraryPath    string `yaml:"library_path"`
	IntraOpThreads int    `yaml:"intra_op_threads"`
	InterOpThreads int    `yaml:"inter_op_threads"`
}

type ImageConfig struct {
	Scaler string `yaml:"scaler"`
	Layout string `yaml:"layout"`
	TopK   int    `yaml:"top_k"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	PoolSize       int           `yaml:"pool_size"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

func Default() Config {
	return Config{
		Assets: AssetsConfig{
			Location: "resources",
			Labels:   detections.DefaultLabelsName,
			Model:    detections.DefaultModelName,
		},
		Engine: EngineConfig{
			Backend:        engines.BackendONNXRuntime,
			IntraOpThreads: runtime.NumCPU(),
			InterOpThreads: runtime.NumCPU(),
		},
		Image: ImageConfig{
			Scaler: "nearest",
			Layout: "nhwc",
			TopK:   5,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			PoolSize:       4,
			AcquireTimeout: 5 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Assets.Location == "" {
		errs = append(errs, errors.New("assets.location is required"))
	}
	if c.Assets.Labels == "" {
		errs = append(errs, errors.New("assets.labels is required"))
	}
	if c.Assets.Model == "" {
		errs = append(errs, errors.New("assets.model is required"))
	}
	if _, err := engines.New(c.Engine.Backend, engines.Options{}); err != nil {
		errs = append(errs, err)
	}
	if _, err := detections.ParseScaler(c.Image.Scaler); err != nil {
		errs = append(errs, err)
	}
	if _, err := detections.ParseLayout(c.Image.Layout); err != nil {
		errs = append(errs, err)
	}
	if c.Image.TopK < 0 {
		errs = append(errs, fmt.Errorf("image.top_k must not be negative, got %d", c.Image.TopK))
	}
	if c.Server.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("server.pool_size must be positive, got %d", c.Server.PoolSize))
	}
	if c.Server.AcquireTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.acquire_timeout must be positive, got %s", c.Server.AcquireTimeout))
	}
	return errors.Join(errs...)
}

// Preprocessor builds the image preprocessor described by the config.
func (c Config) Preprocessor() (*detections.Preprocessor, error) {
	scaler, err := detections.ParseScaler(c.Image.Scaler)
	if err != nil {
		return nil, err
	}
	layout, err := detections.ParseLayout(c.Image.Layout)
	if err != nil {
		return nil, err
	}
	return detections.NewPreprocessor(detections.WithScaler(scaler), detections.WithLayout(layout)), nil
}

func (c Config) EngineOptions() engines.Options {
	return engines.Options{
		LibraryPath:    c.Engine.LibraryPath,
		IntraOpThreads: c.Engine.IntraOpThreads,
		InterOpThreads: c.Engine.InterOpThreads,
	}
}
