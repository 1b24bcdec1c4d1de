package hargaapi

import "time"

const (
	defaultTimeout  = 15 * time.Second
	defaultPageSize = 100
)

// Config represents the configuration for the price backend client
type Config struct {
	// BaseURL is the backend API root, e.g. https://api.example.go.id/api
	BaseURL string

	// Timeout bounds every request; zero means 15s
	Timeout time.Duration

	// PageSize is used when paging through list endpoints; zero means 100
	PageSize int
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	if c.Timeout < 0 || c.PageSize < 0 {
		return ErrInvalidConfig
	}
	return nil
}
