// Package llm – model catalog.
//
// The catalog resolves a logical model id to its provider family, the wire
// name used against the native API, the slug used when routed through
// OpenRouter, a display name, and list pricing.
package llm

import "strings"

// Provider identifies one backend family.
type Provider string

// Supported provider families. OpenAI and xAI share the ChatML wire format;
// OpenRouter is the multi-provider aggregator (also ChatML).
const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGemini     Provider = "gemini"
	ProviderXAI        Provider = "xai"
	ProviderOpenRouter Provider = "openrouter"
)

// KnownProvider reports whether s names a supported provider family.
func KnownProvider(s string) bool {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderXAI, ProviderOpenRouter:
		return true
	default:
		return false
	}
}

// ModelInfo describes one catalog entry.
//
// InUSDPerMTok/OutUSDPerMTok are list prices in USD per 1M tokens and feed
// the cost estimate only; they are not billing-grade.
type ModelInfo struct {
	ID            string   // logical id used throughout the application
	Provider      Provider // native provider family
	WireName      string   // model name on the native API
	RoutedName    string   // model slug when routed through OpenRouter
	DisplayName   string   // human-readable name shown in debates
	InUSDPerMTok  float64
	OutUSDPerMTok float64
}

// Catalog maps logical model ids to ModelInfo.
type Catalog map[string]ModelInfo

// Lookup resolves a logical model id, case-insensitively.
func (c Catalog) Lookup(id string) (ModelInfo, bool) {
	m, ok := c[strings.ToLower(strings.TrimSpace(id))]
	return m, ok
}

// DisplayName returns the display name for id, falling back to the raw id
// for models missing from the catalog.
func (c Catalog) DisplayName(id string) string {
	if m, ok := c.Lookup(id); ok {
		return m.DisplayName
	}
	return id
}

// DefaultCatalog returns the built-in model catalog.
func DefaultCatalog() Catalog {
	models := []ModelInfo{
		{ID: "gpt-4o", Provider: ProviderOpenAI, WireName: "gpt-4o", RoutedName: "openai/gpt-4o", DisplayName: "GPT-4o", InUSDPerMTok: 2.50, OutUSDPerMTok: 10.00},
		{ID: "gpt-4o-mini", Provider: ProviderOpenAI, WireName: "gpt-4o-mini", RoutedName: "openai/gpt-4o-mini", DisplayName: "GPT-4o mini", InUSDPerMTok: 0.15, OutUSDPerMTok: 0.60},
		{ID: "gpt-4.1", Provider: ProviderOpenAI, WireName: "gpt-4.1", RoutedName: "openai/gpt-4.1", DisplayName: "GPT-4.1", InUSDPerMTok: 2.00, OutUSDPerMTok: 8.00},
		{ID: "claude-sonnet-4", Provider: ProviderAnthropic, WireName: "claude-sonnet-4-20250514", RoutedName: "anthropic/claude-sonnet-4", DisplayName: "Claude Sonnet 4", InUSDPerMTok: 3.00, OutUSDPerMTok: 15.00},
		{ID: "claude-3-5-haiku", Provider: ProviderAnthropic, WireName: "claude-3-5-haiku-20241022", RoutedName: "anthropic/claude-3.5-haiku", DisplayName: "Claude 3.5 Haiku", InUSDPerMTok: 0.80, OutUSDPerMTok: 4.00},
		{ID: "gemini-2.0-flash", Provider: ProviderGemini, WireName: "gemini-2.0-flash", RoutedName: "google/gemini-2.0-flash-001", DisplayName: "Gemini 2.0 Flash", InUSDPerMTok: 0.10, OutUSDPerMTok: 0.40},
		{ID: "gemini-1.5-pro", Provider: ProviderGemini, WireName: "gemini-1.5-pro", RoutedName: "google/gemini-pro-1.5", DisplayName: "Gemini 1.5 Pro", InUSDPerMTok: 1.25, OutUSDPerMTok: 5.00},
		{ID: "grok-3", Provider: ProviderXAI, WireName: "grok-3", RoutedName: "x-ai/grok-3", DisplayName: "Grok 3", InUSDPerMTok: 3.00, OutUSDPerMTok: 15.00},
		{ID: "grok-3-mini", Provider: ProviderXAI, WireName: "grok-3-mini", RoutedName: "x-ai/grok-3-mini", DisplayName: "Grok 3 mini", InUSDPerMTok: 0.30, OutUSDPerMTok: 0.50},
	}
	c := make(Catalog, len(models))
	for _, m := range models {
		c[m.ID] = m
	}
	return c
}
