package enrich

import (
	"context"
	"fmt"

	"github.com/user/scanhub/pkg/config"
)

func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	name := cfg.SelectedProvider
	pc := cfg.Providers[name]
	switch name {
	case "gemini":
		return NewGeminiProvider(ctx, pc.APIKey, cfg.SelectedModel)
	case "openai":
		return NewOpenAIProvider(pc.APIKey, cfg.SelectedModel), nil
	case "azure":
		return NewAzureProvider(pc.Endpoint, pc.APIKey, pc.Deployment)
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
