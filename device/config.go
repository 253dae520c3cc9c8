package device

import (
	"errors"
	"time"

	"github.com/openpgp-hw/tokencore/logger"
	"github.com/openpgp-hw/tokencore/token"
)

// Config represents the configuration parameters for the device control core.
type Config struct {
	// candidates is the ordered list of known networks. Insertion order
	// defines the round-robin order.
	candidates []token.Candidate

	// peerPort specifies the fixed TCP port of the counterpart machine.
	// Defaults to 5511.
	peerPort int

	// connectTimeout bounds one dial attempt to the counterpart.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// dialRetryDelay is the fixed backoff after a failed dial before the
	// session loop re-checks connectivity and retries. The candidate is not
	// advanced by a dial failure. Defaults to 5 seconds.
	dialRetryDelay time.Duration

	// confirmPollInterval is the half-period of the confirmation gate: the
	// indicator is on for one interval and off for one interval per
	// iteration. Defaults to 250 milliseconds.
	confirmPollInterval time.Duration

	// confirmBudget is the number of gate iterations before the operation is
	// blocked. Defaults to 30 (15 seconds total with the default interval).
	confirmBudget int

	// resetPollInterval is the polling period of the reset watcher.
	// Defaults to 4 seconds.
	resetPollInterval time.Duration

	// blinkInterval is the toggle period of the status indicator while the
	// link is down. Defaults to 500 milliseconds.
	blinkInterval time.Duration

	// recvBufferSize bounds the bytes read from one session connection.
	// Defaults to 1024.
	recvBufferSize int

	// restartCountdown is the number of one-second countdown steps logged
	// before a controlled restart. Defaults to 3.
	restartCountdown int

	// lifecycleFlagName is the persisted flag distinguishing first boot from
	// subsequent boots. Defaults to "initialized".
	lifecycleFlagName string

	// logger provides a logger instance for device events and errors.
	logger logger.Logger
}

// NewConfig creates a device configuration for the given candidate networks
// with default values, then applies the provided options.
//
// It returns an error when the candidate list is empty or an option rejects
// its value.
func NewConfig(candidates []token.Candidate, opts ...Option) (*Config, error) {
	if len(candidates) == 0 {
		return nil, token.ErrNoCandidates
	}

	cfg := &Config{
		candidates:          append([]token.Candidate(nil), candidates...),
		peerPort:            5511,
		connectTimeout:      3 * time.Second,
		dialRetryDelay:      5 * time.Second,
		confirmPollInterval: 250 * time.Millisecond,
		confirmBudget:       30,
		resetPollInterval:   4 * time.Second,
		blinkInterval:       500 * time.Millisecond,
		recvBufferSize:      1024,
		restartCountdown:    3,
		lifecycleFlagName:   "initialized",
		logger:              logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Candidates returns a copy of the configured candidate list.
func (cfg *Config) Candidates() []token.Candidate {
	return append([]token.Candidate(nil), cfg.candidates...)
}

// PeerPort returns the fixed TCP port of the counterpart machine.
func (cfg *Config) PeerPort() int {
	return cfg.peerPort
}

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error { return o.applyFunc(cfg) }

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithPeerPort sets the fixed TCP port of the counterpart machine.
// An error is returned if the port is out of the valid range (1-65535) or if
// the configuration is nil.
//
// The default value is 5511.
func WithPeerPort(port int) Option {
	return newOptFunc("WithPeerPort", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if port < 1 || port > 65535 {
			return errors.New("peer port is out of range [1, 65535]")
		}
		cfg.peerPort = port

		return nil
	})
}

// WithConnectTimeout bounds one dial attempt to the counterpart.
// An error is returned if the timeout is outside [100ms, 30s] or if the
// configuration is nil.
//
// The default value is 3 seconds.
func WithConnectTimeout(val time.Duration) Option {
	return newOptFunc("WithConnectTimeout", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if val < 100*time.Millisecond || val > 30*time.Second {
			return errors.New("connect timeout out of range [0.1s, 30s]")
		}
		cfg.connectTimeout = val

		return nil
	})
}

// WithDialRetryDelay sets the fixed backoff after a failed dial.
// An error is returned if the delay is outside [10ms, 60s] or if the
// configuration is nil.
//
// The default value is 5 seconds.
func WithDialRetryDelay(val time.Duration) Option {
	return newOptFunc("WithDialRetryDelay", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if val < 10*time.Millisecond || val > 60*time.Second {
			return errors.New("dial retry delay out of range [0.01s, 60s]")
		}
		cfg.dialRetryDelay = val

		return nil
	})
}

// WithConfirmPollInterval sets the half-period of the confirmation gate.
// An error is returned if the interval is outside [1ms, 5s] or if the
// configuration is nil.
//
// The default value is 250 milliseconds.
func WithConfirmPollInterval(val time.Duration) Option {
	return newOptFunc("WithConfirmPollInterval", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if val < time.Millisecond || val > 5*time.Second {
			return errors.New("confirm poll interval out of range [1ms, 5s]")
		}
		cfg.confirmPollInterval = val

		return nil
	})
}

// WithConfirmBudget sets the number of confirmation gate iterations before
// the operation is blocked.
// An error is returned if the budget is outside [1, 600] or if the
// configuration is nil.
//
// The default value is 30.
func WithConfirmBudget(iterations int) Option {
	return newOptFunc("WithConfirmBudget", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if iterations < 1 || iterations > 600 {
			return errors.New("confirm budget out of range [1, 600]")
		}
		cfg.confirmBudget = iterations

		return nil
	})
}

// WithResetPollInterval sets the polling period of the reset watcher.
// An error is returned if the interval is outside [1ms, 60s] or if the
// configuration is nil.
//
// The default value is 4 seconds.
func WithResetPollInterval(val time.Duration) Option {
	return newOptFunc("WithResetPollInterval", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if val < time.Millisecond || val > 60*time.Second {
			return errors.New("reset poll interval out of range [1ms, 60s]")
		}
		cfg.resetPollInterval = val

		return nil
	})
}

// WithBlinkInterval sets the toggle period of the status indicator while the
// link is down.
// An error is returned if the interval is outside [1ms, 10s] or if the
// configuration is nil.
//
// The default value is 500 milliseconds.
func WithBlinkInterval(val time.Duration) Option {
	return newOptFunc("WithBlinkInterval", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if val < time.Millisecond || val > 10*time.Second {
			return errors.New("blink interval out of range [1ms, 10s]")
		}
		cfg.blinkInterval = val

		return nil
	})
}

// WithRecvBufferSize bounds the bytes read from one session connection.
// An error is returned if the size is outside [64, 65536] or if the
// configuration is nil.
//
// The default value is 1024.
func WithRecvBufferSize(size int) Option {
	return newOptFunc("WithRecvBufferSize", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if size < 64 || size > 65536 {
			return errors.New("receive buffer size out of range [64, 65536]")
		}
		cfg.recvBufferSize = size

		return nil
	})
}

// WithRestartCountdown sets the number of one-second countdown steps logged
// before a controlled restart.
// An error is returned if the count is outside [0, 10] or if the
// configuration is nil.
//
// The default value is 3.
func WithRestartCountdown(steps int) Option {
	return newOptFunc("WithRestartCountdown", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if steps < 0 || steps > 10 {
			return errors.New("restart countdown out of range [0, 10]")
		}
		cfg.restartCountdown = steps

		return nil
	})
}

// WithLifecycleFlagName sets the name of the persisted lifecycle flag.
// An error is returned if the name is empty or if the configuration is nil.
//
// The default value is "initialized".
func WithLifecycleFlagName(name string) Option {
	return newOptFunc("WithLifecycleFlagName", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if name == "" {
			return errors.New("lifecycle flag name is empty")
		}
		cfg.lifecycleFlagName = name

		return nil
	})
}

// WithLogger sets the logger for the device.
// An error is returned if the logger or the configuration is nil.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if cfg == nil {
			return token.ErrConfigNil
		}

		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
