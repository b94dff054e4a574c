package llm

import (
	"fmt"

	"github.com/sozercan/decomp-relay/internal/config"
)

// New returns the provider selected by cfg.LLM.Provider.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return NewGemini(&cfg.Gemini)
	case config.ProviderOpenAI:
		return NewOpenAI(&cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
