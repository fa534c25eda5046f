package provider

import (
	"fmt"

	"go.uber.org/zap"

	"mcpchat/config"
	"mcpchat/model"
)

// FromConfig creates the provider selected by the [llm] section.
//
// The API key is taken from the config (decrypted through creds when it
// carries the "enc:" prefix) or, when empty, from the credential store
// entry for the provider.
func FromConfig(llm config.LLMConfig, creds *config.CredentialStore, logger *zap.Logger) (model.Provider, error) {
	apiKey := llm.APIKey
	if creds != nil {
		resolved, err := creds.ResolveAPIKey(llm.Provider, llm.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve API key for %s: %w", llm.Provider, err)
		}
		apiKey = resolved
	}

	p, err := NewProvider(Config{
		Type:        MapProviderIDToType(llm.Provider),
		BaseURL:     llm.BaseURL,
		Model:       llm.Model,
		APIKey:      apiKey,
		Temperature: llm.Temperature,
		MaxTokens:   llm.MaxTokens,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", llm.Provider, err)
	}

	if logger != nil {
		logger.Debug("provider initialized",
			zap.String("provider", llm.Provider),
			zap.String("model", llm.Model))
	}
	return p, nil
}
