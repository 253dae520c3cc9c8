// Package config loads the boot-time device configuration: the ordered
// candidate network list, the fixed peer port, and optional timing overrides.
// The process is headless; this file is its only configuration surface.
package config

import (
	"time"

	"github.com/openpgp-hw/tokencore/device"
	"github.com/openpgp-hw/tokencore/token"
)

// Config is the root of the YAML configuration file.
type Config struct {
	// Networks is the ordered candidate list; order defines the round-robin
	// order.
	Networks []NetworkConfig `yaml:"networks"`

	// Port is the fixed TCP port of the counterpart machine. Optional,
	// defaults to the device default.
	Port int `yaml:"port"`

	// Store is the directory of the persisted flag store. Optional.
	Store string `yaml:"store"`

	// Timing holds optional timing overrides; zero values keep the device
	// defaults.
	Timing TimingConfig `yaml:"timing"`

	// LogLevel is one of debug, info, warn, error. Optional, defaults to
	// info.
	LogLevel string `yaml:"log_level"`
}

// NetworkConfig is one candidate network.
type NetworkConfig struct {
	Name       string `yaml:"name"`
	Credential string `yaml:"credential"`
	PeerHost   string `yaml:"peer_host"`
}

// TimingConfig holds the optional timing overrides, all in milliseconds
// except the iteration count.
type TimingConfig struct {
	ConnectTimeoutMs  int `yaml:"connect_timeout_ms"`
	DialRetryDelayMs  int `yaml:"dial_retry_delay_ms"`
	ConfirmPollMs     int `yaml:"confirm_poll_ms"`
	ConfirmBudget     int `yaml:"confirm_budget"`
	ResetPollMs       int `yaml:"reset_poll_ms"`
	BlinkMs           int `yaml:"blink_ms"`
	RecvBufferSize    int `yaml:"recv_buffer_size"`
	RestartCountdownS int `yaml:"restart_countdown_s"`
}

// Candidates maps the configured networks to token candidates.
func (c *Config) Candidates() []token.Candidate {
	candidates := make([]token.Candidate, 0, len(c.Networks))
	for _, n := range c.Networks {
		candidates = append(candidates, token.Candidate{
			Name:       n.Name,
			Credential: n.Credential,
			PeerHost:   n.PeerHost,
		})
	}

	return candidates
}

// DeviceOptions maps the configuration to device options. Zero values emit no
// option, keeping the device defaults.
func (c *Config) DeviceOptions() []device.Option {
	var opts []device.Option

	if c.Port != 0 {
		opts = append(opts, device.WithPeerPort(c.Port))
	}
	if c.Timing.ConnectTimeoutMs != 0 {
		opts = append(opts, device.WithConnectTimeout(time.Duration(c.Timing.ConnectTimeoutMs)*time.Millisecond))
	}
	if c.Timing.DialRetryDelayMs != 0 {
		opts = append(opts, device.WithDialRetryDelay(time.Duration(c.Timing.DialRetryDelayMs)*time.Millisecond))
	}
	if c.Timing.ConfirmPollMs != 0 {
		opts = append(opts, device.WithConfirmPollInterval(time.Duration(c.Timing.ConfirmPollMs)*time.Millisecond))
	}
	if c.Timing.ConfirmBudget != 0 {
		opts = append(opts, device.WithConfirmBudget(c.Timing.ConfirmBudget))
	}
	if c.Timing.ResetPollMs != 0 {
		opts = append(opts, device.WithResetPollInterval(time.Duration(c.Timing.ResetPollMs)*time.Millisecond))
	}
	if c.Timing.BlinkMs != 0 {
		opts = append(opts, device.WithBlinkInterval(time.Duration(c.Timing.BlinkMs)*time.Millisecond))
	}
	if c.Timing.RecvBufferSize != 0 {
		opts = append(opts, device.WithRecvBufferSize(c.Timing.RecvBufferSize))
	}
	if c.Timing.RestartCountdownS != 0 {
		opts = append(opts, device.WithRestartCountdown(c.Timing.RestartCountdownS))
	}

	return opts
}
