package domain

// ModelTier classifies a model for quota purposes.
type ModelTier string

const (
	TierBasic ModelTier = "basic"
	TierPro   ModelTier = "pro"
	TierElite ModelTier = "elite"
)

// Model describes an upstream chat model exposed to clients.
type Model struct {
	Name     string    `json:"value"`
	Label    string    `json:"text"`
	Provider string    `json:"provider"`
	Tier     ModelTier `json:"tier"`
	Vision   bool      `json:"vision,omitempty"`
}

// SupportedModels is the catalog of models the service brokers. Basic models
// are unrestricted, pro models are limited for non-subscribers, elite models
// are subscriber-only.
var SupportedModels = []Model{
	{Name: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo", Provider: "openai", Tier: TierBasic},
	{Name: "gpt-3.5-turbo-16k", Label: "GPT-3.5 Turbo 16k", Provider: "openai", Tier: TierBasic},
	{Name: "deepseek-chat", Label: "DeepSeek Chat", Provider: "deepseek", Tier: TierBasic},

	{Name: "gpt-4o", Label: "GPT-4o", Provider: "openai", Tier: TierPro, Vision: true},
	{Name: "gpt-4-turbo", Label: "GPT-4 Turbo", Provider: "openai", Tier: TierPro, Vision: true},
	{Name: "gpt-4", Label: "GPT-4", Provider: "openai", Tier: TierPro},
	{Name: "gpt-4o-mini", Label: "GPT-4o mini", Provider: "openai", Tier: TierPro, Vision: true},
	{Name: "dall-e-3", Label: "DALL·E 3", Provider: "openai", Tier: TierPro},
	{Name: "claude-3-sonnet-20240229", Label: "Claude 3 Sonnet", Provider: "anthropic", Tier: TierPro, Vision: true},
	{Name: "claude-3-haiku-20240307", Label: "Claude 3 Haiku", Provider: "anthropic", Tier: TierPro, Vision: true},
	{Name: "gemini-1.5-pro", Label: "Gemini 1.5 Pro", Provider: "google", Tier: TierPro, Vision: true},
	{Name: "gemini-1.5-flash", Label: "Gemini 1.5 Flash", Provider: "google", Tier: TierPro, Vision: true},
	{Name: "gemini-1.5-flash-8b", Label: "Gemini 1.5 Flash-8B", Provider: "google", Tier: TierPro, Vision: true},
	{Name: "grok-vision-beta", Label: "Grok Vision beta", Provider: "xai", Tier: TierPro, Vision: true},

	{Name: "claude-3-5-sonnet-20240620", Label: "Claude 3.5 Sonnet", Provider: "anthropic", Tier: TierElite, Vision: true},
	{Name: "claude-3-opus-20240229", Label: "Claude 3 Opus", Provider: "anthropic", Tier: TierElite, Vision: true},
	{Name: "gpt-4-32k", Label: "GPT-4 32k", Provider: "openai", Tier: TierElite},
	{Name: "o1-preview", Label: "OpenAI o1 preview", Provider: "openai", Tier: TierElite},
	{Name: "o1-mini", Label: "OpenAI o1 mini", Provider: "openai", Tier: TierElite},
	{Name: "gemini-2.0-flash-exp", Label: "Gemini 2.0 Flash", Provider: "google", Tier: TierElite, Vision: true},
	{Name: "grok-2-vision-1212", Label: "Grok 2 Vision", Provider: "xai", Tier: TierElite, Vision: true},
	{Name: "grok-2-1212", Label: "Grok 2", Provider: "xai", Tier: TierElite},
	{Name: "grok-beta", Label: "Grok beta", Provider: "xai", Tier: TierElite},
	{Name: "deepseek-coder", Label: "DeepSeek Coder", Provider: "deepseek", Tier: TierElite},
}

var modelsByName = func() map[string]Model {
	m := make(map[string]Model, len(SupportedModels))
	for _, model := range SupportedModels {
		m[model.Name] = model
	}
	return m
}()

// LookupModel resolves a model identifier against the catalog.
func LookupModel(name string) (Model, bool) {
	m, ok := modelsByName[name]
	return m, ok
}
