package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tutortoise/dog-breed-detector/detections"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "resources", cfg.Assets.Location)
	assert.Equal(t, "labels.txt", cfg.Assets.Labels)
	assert.Equal(t, "dog-breed-detector.onnx", cfg.Assets.Model)
	assert.Equal(t, "nearest", cfg.Image.Scaler)
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "detector.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Default().Assets, cfg.Assets)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assets:
  location: s3://models/dogs
engine:
  backend: gonnx
image:
  layout: nchw
  top_k: 3
server:
  pool_size: 2
  acquire_timeout: 250ms
debug: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "s3://models/dogs", cfg.Assets.Location)
	assert.Equal(t, "labels.txt", cfg.Assets.Labels)
	assert.Equal(t, "gonnx", cfg.Engine.Backend)
	assert.Equal(t, 3, cfg.Image.TopK)
	assert.Equal(t, 2, cfg.Server.PoolSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.AcquireTimeout)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.True(t, cfg.Debug)

	p, err := cfg.Preprocessor()
	require.NoError(t, err)
	assert.Equal(t, detections.LayoutNCHW, p.Layout())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Assets.Model = ""
	cfg.Engine.Backend = "tensorrt"
	cfg.Image.Scaler = "bicubic"
	cfg.Server.PoolSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "assets.model is required")
	assert.ErrorContains(t, err, `unknown inference backend "tensorrt"`)
	assert.ErrorContains(t, err, `unknown scaler "bicubic"`)
	assert.ErrorContains(t, err, "server.pool_size must be positive")
}
