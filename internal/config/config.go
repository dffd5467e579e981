// Package config reads the run description: the tensor order, then one
// line per mode with its global extent, target Tucker rank, and process
// grid factor.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/tucker-ml/tucker/internal/shape"
)

// Config describes one decomposition run.
type Config struct {
	Order   int
	Extents shape.Shape // global extent per mode
	Ranks   shape.Shape // target Tucker rank per mode
	Par     shape.Shape // process grid factor per mode
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: open input")
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Parse reads a configuration from r:
//
//	N
//	I_1 R_1 par_1
//	...
//	I_N R_N par_N
func Parse(r io.Reader) (*Config, error) {
	var order int
	if _, err := fmt.Fscan(r, &order); err != nil {
		return nil, errors.Wrap(err, "reading tensor order")
	}
	if order < 1 {
		return nil, errors.Errorf("tensor order must be at least 1, got %d", order)
	}

	cfg := &Config{
		Order:   order,
		Extents: make(shape.Shape, order),
		Ranks:   make(shape.Shape, order),
		Par:     make(shape.Shape, order),
	}
	for k := 0; k < order; k++ {
		if _, err := fmt.Fscan(r, &cfg.Extents[k], &cfg.Ranks[k], &cfg.Par[k]); err != nil {
			return nil, errors.Wrapf(err, "reading mode %d", k)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.Extents.Validate(); err != nil {
		return errors.Wrap(err, "extents")
	}
	if err := c.Par.Validate(); err != nil {
		return errors.Wrap(err, "process grid")
	}
	for k := 0; k < c.Order; k++ {
		if c.Ranks[k] < 1 || c.Ranks[k] > c.Extents[k] {
			return errors.Errorf("mode %d: rank %d out of range [1, %d]", k, c.Ranks[k], c.Extents[k])
		}
	}
	return nil
}

// WorldSize returns the process count the grid requires.
func (c *Config) WorldSize() int {
	return c.Par.NumElements()
}
