// Package openai implements the OpenAI-shaped provider adapter
// URL/auth rewrite, stream-usage opt-in, and
// modality-weighted cost calculation from the pricing table.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	gateway "github.com/aipipe/gateway/internal"
)

const (
	name           = "openai"
	defaultOrigin  = "https://api.openai.com"
	chatCompletion = "/chat/completions"
)

// Rate is the per-million-token pricing for one model.
type Rate struct {
	InputPerM       float64
	OutputPerM      float64
	AudioInputPerM  float64
	AudioOutputPerM float64
}

// Adapter implements gateway.Adapter for the OpenAI-shaped API.
type Adapter struct {
	apiKey  string
	origin  string
	pricing map[string]Rate
}

// New creates an OpenAI adapter. origin defaults to the canonical
// OpenAI API origin when empty.
func New(apiKey, origin string, pricing map[string]Rate) *Adapter {
	if origin == "" {
		origin = defaultOrigin
	}
	return &Adapter{apiKey: apiKey, origin: strings.TrimRight(origin, "/"), pricing: pricing}
}

// DefaultPricing returns the pack's built-in pricing table. Operators
// needing other models pass their own map to New instead.
func DefaultPricing() map[string]Rate {
	return map[string]Rate{
		"gpt-4.1-nano": {InputPerM: 0.10, OutputPerM: 0.40},
		"gpt-4.1-mini": {InputPerM: 0.40, OutputPerM: 1.60},
		"gpt-4o":       {InputPerM: 2.50, OutputPerM: 10.00},
		"gpt-4o-mini":  {InputPerM: 0.15, OutputPerM: 0.60},
		"gpt-4o-audio-preview": {
			InputPerM: 2.50, OutputPerM: 10.00,
			AudioInputPerM: 40.00, AudioOutputPerM: 80.00,
		},
		"text-embedding-3-small": {InputPerM: 0.02},
		"text-embedding-3-large": {InputPerM: 0.13},
	}
}

func (a *Adapter) Name() string { return name }

// Transform rewrites the client request onto the canonical OpenAI
// origin, injecting Authorization and, for streaming chat
// completions, stream_options.include_usage so usage arrives in-band.
func (a *Adapter) Transform(_ context.Context, in gateway.TransformInput) (*gateway.TransformResult, error) {
	header := in.Header.Clone()
	if in.Native {
		header.Set("Authorization", "Bearer "+in.Bearer)
	} else {
		header.Set("Authorization", "Bearer "+a.apiKey)
	}

	body := in.Body
	isJSON := strings.Contains(in.Header.Get("Content-Type"), "application/json")

	if in.Method == http.MethodPost && isJSON && len(body) > 0 {
		model := gjson.GetBytes(body, "model").String()
		if model != "" && !in.Native {
			if _, ok := a.pricing[model]; !ok {
				return &gateway.TransformResult{Err: &gateway.APIError{
					Status:  http.StatusBadRequest,
					Message: fmt.Sprintf("Model %s pricing unknown", model),
				}}, nil
			}
		}

		if strings.HasSuffix(pathNoQuery(in.Path), chatCompletion) && gjson.GetBytes(body, "stream").Bool() {
			updated, err := sjson.SetBytes(body, "stream_options.include_usage", true)
			if err == nil {
				body = updated
			}
		}
	}

	return &gateway.TransformResult{
		URL:    a.origin + in.Path,
		Header: header,
		Body:   body,
	}, nil
}

// Parse unwraps an optional outer {response: ...} envelope and
// extracts {model, usage} using canonical OpenAI field names.
func (a *Adapter) Parse(data []byte) (string, *gateway.Usage) {
	root := gjson.ParseBytes(data)
	if inner := root.Get("response"); inner.Exists() && inner.IsObject() {
		root = inner
	}

	model := root.Get("model").String()

	u := root.Get("usage")
	if !u.Exists() {
		return model, nil
	}
	usage := &gateway.Usage{
		PromptTokens:      int(u.Get("prompt_tokens").Int()),
		CompletionTokens:  int(u.Get("completion_tokens").Int()),
		AudioInputTokens:  int(u.Get("prompt_tokens_details.audio_tokens").Int()),
		AudioOutputTokens: int(u.Get("completion_tokens_details.audio_tokens").Int()),
	}
	return model, usage
}

// Cost prices usage per the pricing table's modality rates. A nil
// Usage or an unpriced model (possible for native-key requests) costs
// zero.
func (a *Adapter) Cost(_ context.Context, in gateway.CostInput) (float64, error) {
	if in.Usage == nil {
		return 0, nil
	}
	rate, ok := a.pricing[in.Model]
	if !ok {
		return 0, nil
	}

	textPrompt := in.Usage.PromptTokens - in.Usage.AudioInputTokens
	textCompletion := in.Usage.CompletionTokens - in.Usage.AudioOutputTokens

	cost := float64(textPrompt)*rate.InputPerM/1e6 +
		float64(textCompletion)*rate.OutputPerM/1e6 +
		float64(in.Usage.AudioInputTokens)*rate.AudioInputPerM/1e6 +
		float64(in.Usage.AudioOutputTokens)*rate.AudioOutputPerM/1e6
	return cost, nil
}

func pathNoQuery(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

var _ gateway.Adapter = (*Adapter)(nil)
