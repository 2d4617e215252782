// Package providers holds the built-in model presets offered for each tool.
package providers

import (
	"errors"
	"strings"

	"aicoder/config/models"
)

// OriginalModel is the preset that leaves the tool on its own vendor login.
const OriginalModel = "Original"

// CustomModel is the preset the user points at any compatible endpoint.
const CustomModel = "Custom"

// Provider describes a model preset
type Provider interface {
	// Name returns the model name shown on the model tab (e.g. "GLM")
	Name() string
	// DefaultBaseURL returns the endpoint used for the tool, "" when the
	// provider does not serve that tool
	DefaultBaseURL(kind models.ToolKind) string
	// SubscriptionURL returns where a key for this provider can be bought
	SubscriptionURL() string
	// IsCustom reports whether the preset is user-defined
	IsCustom() bool
}

var (
	registry = make(map[string]Provider)
	order    []string
)

// Register registers a new provider. Registering a name twice replaces the
// provider but keeps its position.
func Register(provider Provider) {
	key := strings.ToLower(provider.Name())
	if _, ok := registry[key]; !ok {
		order = append(order, key)
	}
	registry[key] = provider
}

// Get returns a provider by name, case-insensitively
func Get(name string) (Provider, error) {
	provider, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.New("unknown provider: " + name)
	}
	return provider, nil
}

// List returns all registered provider names in registration order
func List() []string {
	list := make([]string, 0, len(order))
	for _, key := range order {
		list = append(list, registry[key].Name())
	}
	return list
}

// SubscriptionURL returns the key purchase page for a model name, or "".
func SubscriptionURL(modelName string) string {
	p, err := Get(modelName)
	if err != nil {
		return ""
	}
	return p.SubscriptionURL()
}

// DefaultModels returns the preset model list of a tool. Providers without
// an endpoint for the tool are skipped; Original and Custom are always present.
func DefaultModels(kind models.ToolKind) []models.ModelProfile {
	var out []models.ModelProfile
	for _, key := range order {
		p := registry[key]
		url := p.DefaultBaseURL(kind)
		if url == "" && p.Name() != OriginalModel && !p.IsCustom() {
			continue
		}
		out = append(out, models.ModelProfile{
			ModelName: p.Name(),
			ModelURL:  url,
			IsCustom:  p.IsCustom(),
		})
	}
	return out
}

// Preset is a provider backed by a static endpoint table
type Preset struct {
	ModelName    string
	Endpoints    map[models.ToolKind]string
	Subscription string
	Custom       bool
}

func (p *Preset) Name() string {
	return p.ModelName
}

func (p *Preset) DefaultBaseURL(kind models.ToolKind) string {
	return p.Endpoints[kind]
}

func (p *Preset) SubscriptionURL() string {
	return p.Subscription
}

func (p *Preset) IsCustom() bool {
	return p.Custom
}

func init() {
	Register(&Preset{ModelName: OriginalModel})
	Register(&Preset{
		ModelName: "GLM",
		Endpoints: map[models.ToolKind]string{
			models.ToolClaude: "https://open.bigmodel.cn/api/anthropic",
			models.ToolCodex:  "https://open.bigmodel.cn/api/coding/paas/v4",
		},
		Subscription: "https://bigmodel.cn/glm-coding",
	})
	Register(&Preset{
		ModelName: "Kimi",
		Endpoints: map[models.ToolKind]string{
			models.ToolClaude: "https://api.moonshot.cn/anthropic",
			models.ToolCodex:  "https://api.moonshot.cn/v1",
		},
		Subscription: "https://www.kimi.com/membership/pricing",
	})
	Register(&Preset{
		ModelName: "Doubao",
		Endpoints: map[models.ToolKind]string{
			models.ToolClaude: "https://ark.cn-beijing.volces.com/api/coding",
			models.ToolCodex:  "https://ark.cn-beijing.volces.com/api/v3",
		},
		Subscription: "https://www.volcengine.com/activity/codingplan",
	})
	Register(&Preset{
		ModelName: "MiniMax",
		Endpoints: map[models.ToolKind]string{
			models.ToolClaude: "https://api.minimaxi.com/anthropic",
			models.ToolCodex:  "https://api.minimaxi.com/v1",
		},
		Subscription: "https://platform.minimaxi.com/user-center/payment/coding-plan",
	})
	Register(&Preset{ModelName: CustomModel, Custom: true})
}
