package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sagaplayer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func validConfig() Config {
	return Config{
		Log: LogConfig{
			Level:     "info",
			Output:    "stderr",
			MaxSizeMB: 10,
		},
		Audio: AudioConfig{Backend: "silent"},
		Catalog: CatalogConfig{
			Title: "Test",
			Sagas: []SagaConfig{
				{Name: "Troy Saga", Tracks: []string{"a.wav"}},
			},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "empty saga track list is allowed",
			modify: func(c *Config) {
				c.Catalog.Sagas = append(c.Catalog.Sagas, SagaConfig{Name: "Empty"})
			},
			wantErr: false,
		},
		{
			name: "no sagas",
			modify: func(c *Config) {
				c.Catalog.Sagas = nil
			},
			wantErr: true,
			errMsg:  "Sagas",
		},
		{
			name: "saga without name",
			modify: func(c *Config) {
				c.Catalog.Sagas[0].Name = ""
			},
			wantErr: true,
			errMsg:  "Name",
		},
		{
			name: "duplicate saga names",
			modify: func(c *Config) {
				c.Catalog.Sagas = append(c.Catalog.Sagas, SagaConfig{Name: "Troy Saga"})
			},
			wantErr: true,
			errMsg:  "duplicate saga name",
		},
		{
			name: "unknown audio backend",
			modify: func(c *Config) {
				c.Audio.Backend = "alsa"
			},
			wantErr: true,
			errMsg:  "Backend",
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "verbose"
			},
			wantErr: true,
			errMsg:  "Level",
		},
		{
			name: "file output without path",
			modify: func(c *Config) {
				c.Log.Output = "file"
			},
			wantErr: true,
			errMsg:  "File",
		},
		{
			name: "file output with path",
			modify: func(c *Config) {
				c.Log.Output = "file"
				c.Log.File = "logs/sagaplayer.log"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  sagas:
    - name: Troy Saga
      tracks:
        - Troy Saga(1)/Just a Man - 2.wav
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Equal(t, "speaker", cfg.Audio.Backend)
	assert.Equal(t, "Epic Music Player", cfg.Catalog.Title)
	assert.False(t, cfg.Catalog.Watch)
}

func TestLoad_ResolvesMusicDir(t *testing.T) {
	path := writeConfig(t, `
catalog:
  music_dir: music
  sagas:
    - name: Troy Saga
      tracks:
        - Troy Saga(1)/Just a Man - 2.wav
        - /abs/Open Arms - 4.wav
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	musicDir := filepath.Join(filepath.Dir(path), "music")
	assert.Equal(t, musicDir, cfg.Catalog.MusicDir)

	c := cfg.Catalog.Build()
	require.Len(t, c.Sagas, 1)
	require.Len(t, c.Sagas[0].Tracks, 2)
	assert.Equal(t, filepath.Join(musicDir, "Troy Saga(1)", "Just a Man - 2.wav"), c.Sagas[0].Tracks[0].ID)
	assert.Equal(t, "/abs/Open Arms - 4.wav", c.Sagas[0].Tracks[1].ID)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SAGAPLAYER_AUDIO_BACKEND", "SILENT")
	t.Setenv("SAGAPLAYER_LOG_LEVEL", "debug")
	t.Setenv("SAGAPLAYER_MUSIC_DIR", "/srv/music")

	path := writeConfig(t, `
audio:
  backend: speaker
catalog:
  music_dir: music
  sagas:
    - name: Troy Saga
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "silent", cfg.Audio.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/srv/music", cfg.Catalog.MusicDir)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "catalog: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("validation failure", func(t *testing.T) {
		_, err := Load(writeConfig(t, "catalog:\n  title: nothing\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
	})
}

func TestLoadCatalog(t *testing.T) {
	path := writeConfig(t, `
catalog:
  title: Epic Music Player
  subtitle: Journey of Odysseus of Ithica
  sagas:
    - name: Troy Saga
      tracks: [a.wav, b.wav]
    - name: Cyclops Saga
      tracks: [c.wav]
`)

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, "Journey of Odysseus of Ithica", c.Subtitle)
	require.Len(t, c.Sagas, 2)
	assert.Equal(t, "Cyclops Saga", c.Sagas[1].Name)
	assert.Equal(t, "a.wav", c.Sagas[0].Tracks[0].ID)
	assert.Equal(t, 3, c.ExitChoice())
}

func TestShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config", "sagaplayer.yaml"))
	require.NoError(t, err)

	c := cfg.Catalog.Build()
	assert.Len(t, c.Sagas, 8)
	assert.Equal(t, 9, c.ExitChoice())
	assert.Equal(t, "Troy Saga", c.Sagas[0].Name)
	assert.Equal(t, "Vengeance Saga", c.Sagas[7].Name)

	require.Contains(t, cfg.Filters, "duration_limit_filter")
	assert.True(t, cfg.Filters["duration_limit_filter"].Enabled)
	assert.Equal(t, 15, cfg.Filters["duration_limit_filter"].Settings["max_minutes"])
}
