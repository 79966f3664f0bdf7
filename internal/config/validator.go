package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/types"
)

// maxContentSizeLimit bounds one physical row.
const maxContentSizeLimit = 64 * 1024 * 1024

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateStoreConfig(&cfg.Store); err != nil {
		return spanerrors.NewConfigError("store", cfg.Store.Backend, err)
	}

	if err := v.validateSpansConfig(&cfg.Spans); err != nil {
		return spanerrors.NewConfigError("spans", "", err)
	}

	if cfg.Upload.Concurrency < 0 {
		return spanerrors.NewConfigError("upload.concurrency", fmt.Sprint(cfg.Upload.Concurrency),
			errors.New("concurrency cannot be negative"))
	}
	if cfg.Upload.WatchDebounceMs < 0 {
		return spanerrors.NewConfigError("upload.watch_debounce_ms", fmt.Sprint(cfg.Upload.WatchDebounceMs),
			errors.New("debounce cannot be negative"))
	}

	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return spanerrors.NewConfigError("search", "", err)
	}

	for _, pattern := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return spanerrors.NewConfigError("pattern", pattern, doublestar.ErrBadPattern)
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateStoreConfig(store *Store) error {
	store.Backend = strings.ToLower(store.Backend)
	switch store.Backend {
	case "", BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q, expected %q or %q", store.Backend, BackendSQLite, BackendMemory)
	}
	if strings.ContainsAny(store.Index, " \t\n") {
		return fmt.Errorf("index name %q must not contain whitespace", store.Index)
	}
	return nil
}

func (v *Validator) validateSpansConfig(spans *Spans) error {
	if spans.MaxContentSize < 0 {
		return fmt.Errorf("MaxContentSize cannot be negative, got %d", spans.MaxContentSize)
	}

	if spans.MaxContentSize > maxContentSizeLimit {
		return fmt.Errorf("MaxContentSize should not exceed 64MB, got %d", spans.MaxContentSize)
	}

	if spans.LineSpanThreshold < 0 {
		return fmt.Errorf("LineSpanThreshold cannot be negative, got %d", spans.LineSpanThreshold)
	}

	return nil
}

func (v *Validator) validateSearchConfig(search *Search) error {
	if search.MaxResults < 0 {
		return fmt.Errorf("MaxResults cannot be negative, got %d", search.MaxResults)
	}

	if search.SuggestThreshold < 0 || search.SuggestThreshold > 1 {
		return fmt.Errorf("SuggestThreshold must be within [0, 1], got %v", search.SuggestThreshold)
	}

	return nil
}

// setSmartDefaults fills zero values
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendSQLite
	}

	if cfg.Store.Index == "" {
		cfg.Store.Index = "default"
	}

	if cfg.Spans.MaxContentSize == 0 {
		cfg.Spans.MaxContentSize = types.DefaultMaxContentSize
	}

	if cfg.Spans.LineSpanThreshold == 0 {
		cfg.Spans.LineSpanThreshold = types.DefaultLineSpanThreshold
	}

	// Use cores-1 to leave headroom for the system, minimum of 1
	if cfg.Upload.Concurrency == 0 {
		cfg.Upload.Concurrency = min(types.DefaultUploadConcurrency, max(1, runtime.NumCPU()-1))
	}

	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 100
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
