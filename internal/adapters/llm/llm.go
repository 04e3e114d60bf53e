package llm

import (
	"fmt"
	"time"

	"github.com/0xcro3dile/policyqa-go/internal/domain/ports"
)

// Supported providers.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Options selects and configures a generator.
type Options struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// New builds the generator named by opts.Provider. ProviderNone returns a
// nil generator, which leaves the assistant reporting hasAI=false.
func New(opts Options) (ports.Generator, error) {
	switch opts.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOllama:
		g, err := NewOllamaGenerator(opts.BaseURL, opts.Model, opts.MaxTokens, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOpenAI:
		return NewOpenAIGenerator(opts.BaseURL, opts.APIKey, opts.Model, opts.MaxTokens, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
