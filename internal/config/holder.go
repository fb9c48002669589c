package config

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfigHolder serves the live BillingConfig. Readers take one
// snapshot per operation; Reload swaps it atomically.
type BillingConfigHolder struct {
	current atomic.Pointer[BillingConfig]

	mu     sync.Mutex
	path   string
	viper  *viper.Viper
	onSwap []func(BillingConfig)
}

func NewBillingConfigHolder(cfg Config) *BillingConfigHolder {
	h := &BillingConfigHolder{}
	billing := cfg.Billing
	h.current.Store(&billing)
	return h
}

// NewBillingConfigHolderFromFile keeps the loader around so Reload and Watch
// can re-read the same file.
func NewBillingConfigHolderFromFile(path string) (*BillingConfigHolder, Config, error) {
	v, cfg, err := load(path)
	if err != nil {
		return nil, Config{}, err
	}
	h := NewBillingConfigHolder(cfg)
	h.path = path
	h.viper = v
	return h, cfg, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return *h.current.Load()
}

// Set replaces the live settings after validating them.
func (h *BillingConfigHolder) Set(cfg BillingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	h.current.Store(&cfg)

	h.mu.Lock()
	hooks := append([]func(BillingConfig){}, h.onSwap...)
	h.mu.Unlock()
	for _, fn := range hooks {
		fn(cfg)
	}
	return nil
}

// OnChange registers fn to run after every successful swap.
func (h *BillingConfigHolder) OnChange(fn func(BillingConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSwap = append(h.onSwap, fn)
}

// Reload re-reads the backing file and environment. A failed reload keeps the
// previous settings.
func (h *BillingConfigHolder) Reload() error {
	h.mu.Lock()
	path := h.path
	h.mu.Unlock()

	_, cfg, err := load(path)
	if err != nil {
		return err
	}
	return h.Set(cfg.Billing)
}

// Watch reloads on every write to the config file.
func (h *BillingConfigHolder) Watch(log *zap.Logger) error {
	h.mu.Lock()
	v := h.viper
	h.mu.Unlock()
	if v == nil || h.path == "" {
		return errors.New("config holder has no backing file")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := h.Reload(); err != nil {
			log.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()
	return nil
}
