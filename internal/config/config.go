// Package config holds the participant configuration: which room to join,
// under which display name, through which relay, and the channel descriptor
// shared by every participant of the room.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSignalURL is the relay used when neither the file nor a flag sets one.
const DefaultSignalURL = "ws://127.0.0.1:8080/ws"

// ICEServer mirrors a single STUN/TURN entry.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// Config stores everything needed to join a room.
type Config struct {
	Room      string `yaml:"room"`
	Name      string `yaml:"name"`
	SignalURL string `yaml:"signal_url"`

	ICEServers []ICEServer `yaml:"ice_servers"`

	// Channels maps logical channel names to pre-negotiated data channel ids.
	// Every participant of a room must use the same map.
	Channels map[string]uint16 `yaml:"channels"`

	// IncludeLoopback adds loopback ICE candidates; useful on a single host.
	IncludeLoopback bool `yaml:"include_loopback"`

	Debug         bool          `yaml:"debug"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// Default returns the built-in configuration. Room and Name are left empty.
func Default() Config {
	return Config{
		SignalURL: DefaultSignalURL,
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		Channels: map[string]uint16{
			"chat":  0,
			"state": 1,
		},
		StatsInterval: 10 * time.Second,
	}
}

// Load reads a YAML file on top of Default. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	// yaml merges into a non-nil map; a file descriptor must replace ours.
	defaults := cfg.Channels
	cfg.Channels = nil

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Channels == nil {
		cfg.Channels = defaults
	}

	return cfg, nil
}

// Validate reports every problem with cfg at once.
func (c Config) Validate() error {
	var errs []error

	if c.Room == "" {
		errs = append(errs, errors.New("room is required"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if c.SignalURL == "" {
		errs = append(errs, errors.New("signal_url is required"))
	}
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("at least one channel is required"))
	}

	seen := make(map[uint16]string, len(c.Channels))
	for name, id := range c.Channels {
		if name == "" {
			errs = append(errs, fmt.Errorf("channel %d has an empty name", id))
			continue
		}
		if other, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("channels %q and %q share id %d", other, name, id))
			continue
		}
		seen[id] = name
	}

	return errors.Join(errs...)
}
