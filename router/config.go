package router

import (
	"errors"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/riverrun/brokerlog/segmentlog"
)

const (
	// DefaultMaxSegmentSize is the segment roll threshold applied unless
	// overridden.
	DefaultMaxSegmentSize = segmentlog.DefaultMaxSegmentSize
	// DefaultMaxConnections is the admission bound applied unless
	// overridden.
	DefaultMaxConnections = 1024
	// DefaultMaxPayloadPerRead is the per-readv payload cap applied unless
	// overridden.
	DefaultMaxPayloadPerRead = 500
)

// Config is the Router's configuration, per spec.md §6.
type Config struct {
	// ID names this router's native replication slot; must be in {0,1,2}.
	ID int
	// MaxSegmentSize is the segment roll threshold in bytes.
	MaxSegmentSize uint64
	// MaxSegmentCount is an optional retention bound per topic; tracked
	// only, not enforced by the core (see segmentlog.WithMaxSegmentCount).
	MaxSegmentCount uint32
	// MaxConnections is the admission bound on concurrent connections.
	MaxConnections uint32
	// MaxPayloadPerRead caps the number of payloads a single per-slot read
	// returns while answering a data request; a local subscriber's request
	// reads all three slots, so its reply can hold up to three times this.
	MaxPayloadPerRead uint32

	Logger *zap.Logger
	// Clock stamps record timestamps; overridden with a mock in tests.
	Clock clock.Clock
}

// Option customizes a Config.
type Option func(*Config) error

var defaultOptions = []Option{
	WithID(0),
	WithMaxSegmentSize(DefaultMaxSegmentSize),
	WithMaxConnections(DefaultMaxConnections),
	WithMaxPayloadPerRead(DefaultMaxPayloadPerRead),
}

// NewConfig builds a Config, applying defaults first and then the supplied
// options, matching segmentlog's functional-option pattern.
func NewConfig(opts ...Option) (Config, error) {
	var c Config
	for _, opt := range defaultOptions {
		if err := opt(&c); err != nil {
			return Config{}, err
		}
	}
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return Config{}, err
		}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c, nil
}

// WithID sets the router's native slot id; must be in {0,1,2}.
func WithID(id int) Option {
	return func(c *Config) error {
		if id < 0 || id > 2 {
			return errors.New("router: id must be in {0,1,2}")
		}
		c.ID = id
		return nil
	}
}

// WithMaxSegmentSize sets the per-segment byte budget.
func WithMaxSegmentSize(size uint64) Option {
	return func(c *Config) error {
		if size == 0 {
			return errors.New("router: max segment size must be greater than 0")
		}
		c.MaxSegmentSize = size
		return nil
	}
}

// WithMaxSegmentCount sets the optional retention bound (tracked, not
// enforced by the core).
func WithMaxSegmentCount(count uint32) Option {
	return func(c *Config) error {
		c.MaxSegmentCount = count
		return nil
	}
}

// WithMaxConnections sets the admission bound on concurrent connections.
func WithMaxConnections(max uint32) Option {
	return func(c *Config) error {
		if max == 0 {
			return errors.New("router: max connections must be greater than 0")
		}
		c.MaxConnections = max
		return nil
	}
}

// WithMaxPayloadPerRead sets the per-readv payload cap.
func WithMaxPayloadPerRead(max uint32) Option {
	return func(c *Config) error {
		if max == 0 {
			return errors.New("router: max payload per read must be greater than 0")
		}
		c.MaxPayloadPerRead = max
		return nil
	}
}

// WithLogger sets the structured logger used by the router and its data log.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return errors.New("router: logger must not be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithClock injects a clock, used to stamp record timestamps deterministically
// in tests.
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) error {
		if c == nil {
			return errors.New("router: clock must not be nil")
		}
		cfg.Clock = c
		return nil
	}
}
