package engine

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"docscan/internal/logger"
	"docscan/internal/ocr"
)

// Factory constructs an engine for a concrete script mode.
type Factory func(mode ocr.ScriptMode) (Engine, error)

// Cache holds at most one live engine, keyed by script mode. Requesting a
// different mode closes the current engine before the replacement is
// constructed, so two engines are never alive at once. The lock is held
// only for fetch or swap, never for the duration of a recognition call:
// concurrent calls sharing a mode run the same engine concurrently, while
// mode switches serialize briefly on construction.
type Cache struct {
	mu      sync.Mutex
	factory Factory
	mode    ocr.ScriptMode
	engine  Engine
	log     zerolog.Logger
}

// NewCache returns an empty cache that builds engines with factory.
func NewCache(factory Factory) *Cache {
	return &Cache{
		factory: factory,
		log:     logger.WithComponent("engine-cache"),
	}
}

// Get returns the cached engine for mode, constructing and swapping one in
// if the cached mode differs or the cache is empty. The returned engine is
// cache-owned: callers must not close it.
func (c *Cache) Get(mode ocr.ScriptMode) (Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine != nil && c.mode == mode {
		return c.engine, nil
	}

	if c.engine != nil {
		if err := c.engine.Close(); err != nil {
			c.log.Warn().Err(err).Str("script", c.mode.String()).Msg("Failed to close cached engine")
		}
		c.engine = nil
	}

	engine, err := c.factory(mode)
	if err != nil {
		return nil, fmt.Errorf("construct engine for %s: %w", mode, err)
	}

	c.mode = mode
	c.engine = engine
	c.log.Debug().Str("script", mode.String()).Msg("Engine constructed and cached")
	return engine, nil
}

// Clear closes and drops the cached engine, if any.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return nil
	}
	err := c.engine.Close()
	c.engine = nil
	c.mode = ocr.ScriptAuto
	return err
}
