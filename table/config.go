// Package table implements the table codec (.DBF): opening and creating
// tables, reading and writing fixed-length records, and mutating the
// delete flag, keeping all on-disk layout knowledge in package section and
// restricting this package to I/O and record-level semantics.
package table

import (
	"github.com/sirupsen/logrus"

	"github.com/wing32s/dbase3/assertctx"
	"github.com/wing32s/dbase3/internal/options"
)

// defaultHeapMapBudget is the default number of records kept resident in
// a single in-memory heap map segment.
const defaultHeapMapBudget = 8192

// Config carries the options that shape how a Table is opened or created.
// It is built with the internal/options functional-options pattern.
type Config struct {
	// TrimSpaces trims trailing spaces from character field values on
	// read. Numeric/date/logical decoding is unaffected.
	TrimSpaces bool

	// Logger receives structured diagnostic events (table opened at Debug
	// level, compaction summaries at Info level). Defaults to logrus.New()
	// set to WarnLevel.
	Logger *logrus.Logger

	// HeapMapBudget records a resident-record budget for heap map
	// segments. Zero means defaultHeapMapBudget. The query engine does not
	// read this field; it takes its segment budget from query.NewEngine's
	// budget argument (DB.SetHeapBudget).
	HeapMapBudget int

	// AssertContext, when set, records pass/fail counts for internal
	// consistency checks performed while reading or writing. It has no
	// effect on outcomes; it exists purely for diagnostics and tests.
	AssertContext *assertctx.Context
}

// Option configures a Config.
type Option = options.Option[*Config]

// WithTrimSpaces enables or disables trailing-space trimming of
// character fields.
func WithTrimSpaces(trim bool) Option {
	return options.NoError(func(c *Config) { c.TrimSpaces = trim })
}

// WithLogger sets the logger used for diagnostic events.
func WithLogger(logger *logrus.Logger) Option {
	return options.NoError(func(c *Config) { c.Logger = logger })
}

// WithHeapMapBudget sets Config.HeapMapBudget.
func WithHeapMapBudget(n int) Option {
	return options.NoError(func(c *Config) { c.HeapMapBudget = n })
}

// WithAssertContext attaches an assertion context for diagnostics.
func WithAssertContext(ctx *assertctx.Context) Option {
	return options.NoError(func(c *Config) { c.AssertContext = ctx })
}

// newConfig builds a Config from the given options, applying defaults for
// anything left unset.
func newConfig(opts ...Option) (*Config, error) {
	cfg := &Config{HeapMapBudget: defaultHeapMapBudget}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetLevel(logrus.WarnLevel)
	}
	if cfg.HeapMapBudget <= 0 {
		cfg.HeapMapBudget = defaultHeapMapBudget
	}

	return cfg, nil
}
