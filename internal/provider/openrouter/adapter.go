// Package openrouter implements the OpenRouter-shaped provider
// adapter: auth rewrite, attribution headers for
// identity-token requests, and directory-priced cost calculation.
package openrouter

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	gateway "github.com/aipipe/gateway/internal"
)

const (
	name          = "openrouter"
	defaultOrigin = "https://openrouter.ai/api"
)

// Adapter implements gateway.Adapter for the OpenRouter-shaped API.
type Adapter struct {
	apiKey    string
	origin    string
	referer   string
	title     string
	directory *Directory
}

// New creates an OpenRouter adapter. referer/title are sent as
// attribution headers on identity-token (non-native) requests only;
// native requests pass the caller's own key through untouched.
func New(apiKey, origin, referer, title string, directory *Directory) *Adapter {
	if origin == "" {
		origin = defaultOrigin
	}
	return &Adapter{
		apiKey:    apiKey,
		origin:    strings.TrimRight(origin, "/"),
		referer:   referer,
		title:     title,
		directory: directory,
	}
}

func (a *Adapter) Name() string { return name }

// Transform rewrites onto the OpenRouter origin. Identity-token
// requests get the server's key plus attribution headers; native
// requests forward the caller's own key with the body untouched.
func (a *Adapter) Transform(_ context.Context, in gateway.TransformInput) (*gateway.TransformResult, error) {
	header := in.Header.Clone()
	if in.Native {
		header.Set("Authorization", "Bearer "+in.Bearer)
	} else {
		header.Set("Authorization", "Bearer "+a.apiKey)
		if a.referer != "" {
			header.Set("HTTP-Referer", a.referer)
		}
		if a.title != "" {
			header.Set("X-Title", a.title)
		}
	}

	return &gateway.TransformResult{
		URL:    a.origin + in.Path,
		Header: header,
		Body:   in.Body,
	}, nil
}

// Parse extracts {model, usage} using canonical OpenAI-style field
// names, which OpenRouter mirrors, plus its reasoning-token extension.
func (a *Adapter) Parse(data []byte) (string, *gateway.Usage) {
	root := gjson.ParseBytes(data)
	model := root.Get("model").String()

	u := root.Get("usage")
	if !u.Exists() {
		return model, nil
	}
	usage := &gateway.Usage{
		PromptTokens:     int(u.Get("prompt_tokens").Int()),
		CompletionTokens: int(u.Get("completion_tokens").Int()),
		ReasoningTokens:  int(u.Get("completion_tokens_details.reasoning_tokens").Int()),
		ImageTokens:      int(u.Get("completion_tokens_details.image_tokens").Int()),
	}
	return model, usage
}

// Cost prices usage against the live OpenRouter model directory.
func (a *Adapter) Cost(ctx context.Context, in gateway.CostInput) (float64, error) {
	if in.Usage == nil {
		return 0, nil
	}
	rate, err := a.directory.Rate(ctx, in.Model)
	if err != nil {
		return 0, fmt.Errorf("openrouter cost: %w", err)
	}

	textCompletion := in.Usage.CompletionTokens - in.Usage.ReasoningTokens
	cost := float64(in.Usage.PromptTokens)*rate.Prompt +
		float64(textCompletion)*rate.Completion +
		float64(in.Usage.ReasoningTokens)*rate.InternalReasoning +
		float64(in.Usage.ImageTokens)*rate.Image +
		rate.Request
	return cost, nil
}

var _ gateway.Adapter = (*Adapter)(nil)
