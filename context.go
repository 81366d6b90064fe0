package gopcm

import (
	"sync"

	log "github.com/charmbracelet/log"

	"github.com/richinsley/gopcm/backend"
	"github.com/richinsley/gopcm/pcm"
)

// Context is the process-level entry point. It tries the given backends in
// order, keeps the first one whose runtime is present, and exclusively
// owns that backend's loaded symbols until Uninit. Devices hold a
// non-owning reference to their context and must be closed first.
type Context struct {
	cfg    ContextConfig
	driver backend.Driver

	mu        sync.Mutex
	openCount int
	closed    bool
}

// NewContext probes backends in priority order until one initializes. A
// nil or empty list means the registered default order (richest host API
// first, the null backend last). Returns pcm.ResultNoBackend when nothing
// is available.
func NewContext(backends []string, cfg ContextConfig) (*Context, error) {
	names := backends
	if len(names) == 0 {
		names = backend.DefaultPriority()
	}
	bcfg := backend.ContextConfig{Log: cfg.Log, Alsa: cfg.Alsa}
	for _, name := range names {
		drv, err := backend.New(name)
		if err != nil {
			continue
		}
		if err := drv.ContextInit(bcfg); err != nil {
			if cfg.Log != nil {
				cfg.Log.Debug("backend unavailable", "backend", name, "err", err)
			}
			continue
		}
		if cfg.Log != nil {
			cfg.Log.Info("backend selected", "backend", name)
		}
		return &Context{cfg: cfg, driver: drv}, nil
	}
	return nil, pcm.ResultNoBackend
}

// Backend returns the name of the selected backend.
func (c *Context) Backend() string { return c.driver.Name() }

// Log returns the context's diagnostics sink, possibly nil.
func (c *Context) Log() *log.Logger { return c.cfg.Log }

// Devices enumerates the backend's devices of one direction.
func (c *Context) Devices(t backend.DeviceType) ([]backend.Info, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, pcm.ResultDeviceNotInitialized
	}
	return c.driver.Devices(t)
}

// Uninit releases the backend's runtime symbols. Every device opened from
// this context must already be closed; otherwise pcm.ResultDeviceBusy.
func (c *Context) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.openCount > 0 {
		return pcm.ResultDeviceBusy
	}
	c.closed = true
	return c.driver.ContextUninit()
}

func (c *Context) deviceOpened() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pcm.ResultDeviceNotInitialized
	}
	c.openCount++
	return nil
}

func (c *Context) deviceClosed() {
	c.mu.Lock()
	if c.openCount > 0 {
		c.openCount--
	}
	c.mu.Unlock()
}
