package gateway

import (
	"fmt"

	"github.com/nulzo/tier-router/internal/cli"
	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/guardrail"
	"github.com/nulzo/tier-router/internal/llm"
	"go.uber.org/zap"
)

// BootstrapProviders builds every configured adapter in configuration
// order. Adapters that fail their checks stay registered but disabled, so
// the registry order always mirrors the config file.
func BootstrapProviders(providers []config.ProviderConfig, log *zap.Logger) *llm.Registry {
	built := make([]llm.Provider, 0, len(providers))

	for _, pCfg := range providers {
		p, err := llm.New(pCfg)
		if err != nil {
			log.Error("Failed to initialize provider",
				zap.String("id", pCfg.ID),
				zap.String("type", pCfg.Type),
				zap.Error(err),
			)
			continue
		}

		if !p.Enabled() {
			reason := "disabled"
			if r, ok := p.(interface{ DisabledReason() string }); ok {
				reason = r.DisabledReason()
			}
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.WarningSign(),
				cli.Stylize(fmt.Sprintf("%s\t", pCfg.ID), cli.Black),
				cli.Stylize("Provider disabled: "+reason, cli.Yellow),
			))
		} else {
			log.Info(fmt.Sprintf("%s %s", cli.CheckMark(), pCfg.ID), zap.String("type", pCfg.Type))
		}
		built = append(built, p)
	}

	registry := llm.NewRegistry(built...)
	if registry.EnabledCount() == 0 {
		log.Warn("No providers are enabled. Every request will receive a placeholder response.")
	}
	return registry
}

// BuildFilters turns the guardrail config into input and output filter
// chains. Moderation only screens input; masking applies to both.
func BuildFilters(cfg config.GuardrailsConfig) (input, output guardrail.Chain) {
	if cfg.ContentModeration.Enabled {
		input = append(input, guardrail.NewModerator(cfg.ContentModeration.BlockedTerms))
	}
	if cfg.PIIMasking.Enabled {
		input = append(input, guardrail.PIIMasker{})
		output = append(output, guardrail.PIIMasker{})
	}
	return input, output
}
