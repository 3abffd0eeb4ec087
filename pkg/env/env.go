// Package env resolves environment variables through a chain of providers.
package env

import (
	"context"
	"os"
	"strings"
)

type Provider interface {
	// GetEnv retrieves the value of an environment variable by name.
	// A missing variable is reported as an empty string, not an error.
	GetEnv(ctx context.Context, name string) (string, error)
}

// OsEnvProvider reads the process environment.
type OsEnvProvider struct{}

func NewOsEnvProvider() *OsEnvProvider {
	return &OsEnvProvider{}
}

func (p *OsEnvProvider) GetEnv(_ context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}

// MapProvider serves variables from a fixed map.
type MapProvider map[string]string

func (p MapProvider) GetEnv(_ context.Context, name string) (string, error) {
	return p[name], nil
}

// MultiProvider asks each provider in order and returns the first non-empty value.
type MultiProvider struct {
	providers []Provider
}

func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{
		providers: providers,
	}
}

func (p *MultiProvider) GetEnv(ctx context.Context, name string) (string, error) {
	for _, provider := range p.providers {
		value, err := provider.GetEnv(ctx, name)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
	}
	return "", nil
}

// NewDefaultProvider returns the provider used by the CLI.
func NewDefaultProvider() Provider {
	return NewMultiProvider(NewOsEnvProvider())
}

// FirstOf returns the value of the first variable in names that is set.
// When none is set it returns a *RequiredEnvError listing all of them.
func FirstOf(ctx context.Context, p Provider, names ...string) (string, error) {
	for _, name := range names {
		value, err := p.GetEnv(ctx, name)
		if err != nil {
			return "", err
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, nil
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	return "", &RequiredEnvError{Missing: names}
}

type RequiredEnvError struct {
	Missing []string
}

var _ error = &RequiredEnvError{}

func (e *RequiredEnvError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Missing, ", ")
}
