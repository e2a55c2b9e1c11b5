// Package llm – credential resolution.
//
// Resolution is an ordered list of credential-source strategies tried in
// sequence, each returning an optional route; the first success wins. The
// order is: explicit caller-supplied key (hard mismatch error if bound to
// the wrong provider), then the unified OpenRouter routing key, then the
// platform key for the model's native provider. If nothing resolves, the
// call fails with ErrNoCredential before any network request.
package llm

import "github.com/tbourn/go-debate-backend/internal/config"

// route is a resolved invocation target: which adapter, which wire-level
// model name, and which key.
type route struct {
	provider Provider
	wireName string
	key      string
}

// credSource is one strategy in the fallback chain.
type credSource func(info ModelInfo) (route, bool)

// platformSources builds the platform-level portion of the chain from
// configuration. The unified routing key, when configured, precedes the
// per-provider platform keys.
func platformSources(cfg config.LLMConfig) []credSource {
	var sources []credSource
	if cfg.OpenRouterKey != "" {
		sources = append(sources, func(info ModelInfo) (route, bool) {
			if info.RoutedName == "" {
				return route{}, false
			}
			return route{provider: ProviderOpenRouter, wireName: info.RoutedName, key: cfg.OpenRouterKey}, true
		})
	}
	platformKeys := map[Provider]string{
		ProviderOpenAI:    cfg.OpenAIKey,
		ProviderAnthropic: cfg.AnthropicKey,
		ProviderGemini:    cfg.GeminiKey,
		ProviderXAI:       cfg.XAIKey,
	}
	sources = append(sources, func(info ModelInfo) (route, bool) {
		if k := platformKeys[info.Provider]; k != "" {
			return route{provider: info.Provider, wireName: info.WireName, key: k}, true
		}
		return route{}, false
	})
	return sources
}

// resolve picks the route for info. A non-nil caller credential takes
// precedence over platform sources: an OpenRouter credential routes any
// model through the aggregator, while a provider-specific credential must
// match the model's native provider.
func (c *Client) resolve(info ModelInfo, cred *Credential) (route, error) {
	if cred != nil && cred.Key != "" {
		switch {
		case cred.Provider == ProviderOpenRouter:
			return route{provider: ProviderOpenRouter, wireName: info.RoutedName, key: cred.Key}, nil
		case cred.Provider != info.Provider:
			return route{}, ErrProviderMismatch
		default:
			return route{provider: info.Provider, wireName: info.WireName, key: cred.Key}, nil
		}
	}
	for _, src := range c.sources {
		if r, ok := src(info); ok {
			return r, nil
		}
	}
	return route{}, ErrNoCredential
}
