package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config carries viewer settings sourced from the environment, with flags
// taking precedence. All variables are prefixed EPISODE_VIEWER_.
type Config struct {
	// DataRoot is a dataset directory to open at startup.
	DataRoot string `envconfig:"DATA_ROOT"`
	// Episode selects which episode of the dataset to load.
	Episode int `envconfig:"EPISODE"`
	// PlaybackRate scales playback speed relative to real time.
	PlaybackRate float64 `envconfig:"PLAYBACK_RATE" default:"1"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("episode_viewer", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed processing environment config: %w", err)
	}
	return cfg, nil
}
