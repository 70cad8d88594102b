package barcode

import (
	"time"
)

// Grammar constants for structured codes
const (
	CounterWidth       = 6
	MaxCounter         = 999999
	MaxPrefixLength    = 10
	DefaultPrefix      = "GPMS"
	DefaultCounterBase = 1000
	DefaultConfigID    = "default"
)

// Config is the singleton barcode configuration shared by every process.
// Counters only ever advance, and only through a CounterStore reservation.
type Config struct {
	ID        string
	Prefix    string
	Format    Format
	Counters  map[BarcodeType]int64
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConfig creates a configuration with every known counter seeded at base
func NewConfig(prefix string, format Format, base int64) (*Config, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if !format.IsValid() {
		format = FormatStructured
	}
	if base < 0 {
		return nil, ErrNegativeCounter
	}
	if base > MaxCounter {
		return nil, ErrCounterOverflow
	}

	counters := make(map[BarcodeType]int64, len(AllTypes()))
	for _, t := range AllTypes() {
		counters[t] = base
	}

	now := time.Now()
	return &Config{
		ID:        DefaultConfigID,
		Prefix:    prefix,
		Format:    format,
		Counters:  counters,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Counter returns the last reserved value for t
func (c *Config) Counter(t BarcodeType) int64 {
	return c.Counters[t]
}

// Advance increments the counter for t and returns the new value.
// The caller is responsible for persisting the change.
func (c *Config) Advance(t BarcodeType) (int64, error) {
	if !t.IsValid() {
		return 0, ErrInvalidBarcodeType
	}
	if c.Counters == nil {
		c.Counters = make(map[BarcodeType]int64)
	}
	next := c.Counters[t] + 1
	c.Counters[t] = next
	c.UpdatedAt = time.Now()
	return next, nil
}

// ValidatePrefix checks that prefix is 1..10 uppercase ASCII letters or digits
func ValidatePrefix(prefix string) error {
	if len(prefix) == 0 || len(prefix) > MaxPrefixLength {
		return ErrInvalidPrefix
	}
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if !isDigit(c) && (c < 'A' || c > 'Z') {
			return ErrInvalidPrefix
		}
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
