package kernel

import (
	"time"

	"github.com/rs/zerolog"
)

type config struct {
	name         string
	location     string
	username     string
	plotWidth    float64 // inches
	plotHeight   float64 // inches
	plotDPI      float64
	startTimeout time.Duration
	log          zerolog.Logger
}

func defaultConfig() config {
	return config{
		name:         "webR",
		location:     "browser",
		username:     "kernel",
		plotWidth:    7,
		plotHeight:   5.25,
		plotDPI:      72,
		startTimeout: 60 * time.Second,
		log:          zerolog.Nop(),
	}
}

// Option configures a Session at creation time.
type Option func(*config)

// WithName sets the session's human-readable name.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLocation sets the session's placement tag.
func WithLocation(location string) Option {
	return func(c *config) {
		c.location = location
	}
}

// WithUsername sets the username stamped into outbound message headers.
func WithUsername(username string) Option {
	return func(c *config) {
		c.username = username
	}
}

// WithPlotSize sets the rendered plot size in inches.
func WithPlotSize(width, height float64) Option {
	return func(c *config) {
		c.plotWidth = width
		c.plotHeight = height
	}
}

// WithPlotDPI sets the raster scale factor for rendered plots.
func WithPlotDPI(dpi float64) Option {
	return func(c *config) {
		c.plotDPI = dpi
	}
}

// WithStartTimeout bounds how long Start waits for interpreter readiness.
func WithStartTimeout(d time.Duration) Option {
	return func(c *config) {
		c.startTimeout = d
	}
}

// WithLogger sets the session logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}
