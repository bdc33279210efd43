// Package gemini implements the Gemini-shaped provider adapter
// API-key header rewrite, model-id extraction from
// the request path, and a countTokens side-call fallback for
// embedding calls that return no usage of their own.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	gateway "github.com/aipipe/gateway/internal"
)

const (
	name          = "gemini"
	defaultOrigin = "https://generativelanguage.googleapis.com"
)

// modelPathPattern matches ".../models/<model>:<operation>" and
// captures both the model id and the operation name.
var modelPathPattern = regexp.MustCompile(`/models/([^/:]+):([a-zA-Z]+)`)

// Rate is the per-million-token pricing for one Gemini model.
type Rate struct {
	InputPerM  float64
	OutputPerM float64
}

// Adapter implements gateway.Adapter for the Gemini-shaped API.
type Adapter struct {
	apiKey  string
	origin  string
	pricing map[string]Rate
	client  *http.Client
}

// New creates a Gemini adapter. client is used for the countTokens
// side-call issued when an embedContent response carries no usage.
func New(apiKey, origin string, pricing map[string]Rate, client *http.Client) *Adapter {
	if origin == "" {
		origin = defaultOrigin
	}
	return &Adapter{apiKey: apiKey, origin: strings.TrimRight(origin, "/"), pricing: pricing, client: client}
}

// DefaultPricing returns the pack's built-in Gemini pricing table.
func DefaultPricing() map[string]Rate {
	return map[string]Rate{
		"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
		"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
		"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
		"text-embedding-004":    {InputPerM: 0.00},
	}
}

func (a *Adapter) Name() string { return name }

func modelFromPath(path string) (model, operation string) {
	m := modelPathPattern.FindStringSubmatch(path)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// Transform rewrites Authorization: Bearer into Gemini's x-goog-api-key
// header, gating on the pricing table for identity-token requests.
func (a *Adapter) Transform(_ context.Context, in gateway.TransformInput) (*gateway.TransformResult, error) {
	header := in.Header.Clone()
	header.Del("Authorization")

	model, _ := modelFromPath(in.Path)
	if model == "" {
		model = gjson.GetBytes(in.Body, "model").String()
	}

	if in.Native {
		header.Set("x-goog-api-key", in.Bearer)
	} else {
		header.Set("x-goog-api-key", a.apiKey)
		if model != "" {
			if _, ok := a.pricing[model]; !ok {
				return &gateway.TransformResult{Err: &gateway.APIError{
					Status:  http.StatusBadRequest,
					Message: fmt.Sprintf("Model %s pricing unknown", model),
				}}, nil
			}
		}
	}

	return &gateway.TransformResult{
		URL:    a.origin + in.Path,
		Header: header,
		Body:   in.Body,
	}, nil
}

// Parse extracts {model, usage} from Gemini's usageMetadata shape.
// modelVersion substitutes for model when the body omits it (Gemini
// echoes the resolved model version, not the requested alias).
func (a *Adapter) Parse(data []byte) (string, *gateway.Usage) {
	root := gjson.ParseBytes(data)
	model := root.Get("model").String()
	if model == "" {
		model = root.Get("modelVersion").String()
	}

	u := root.Get("usageMetadata")
	if !u.Exists() {
		return model, nil
	}
	usage := &gateway.Usage{
		PromptTokens:     int(u.Get("promptTokenCount").Int()),
		CompletionTokens: int(u.Get("candidatesTokenCount").Int()),
	}
	return model, usage
}

// Cost prices usage per the pricing table. For embedContent calls --
// which return no usageMetadata of their own -- Cost issues a
// countTokens side-call against the original request body to recover a
// token count to charge against; the model is read off the request
// path since an embedContent response never echoes it either.
func (a *Adapter) Cost(ctx context.Context, in gateway.CostInput) (float64, error) {
	model := in.Model
	if model == "" {
		model, _ = modelFromPath(in.Path)
	}
	rate, ok := a.pricing[model]
	if !ok {
		return 0, nil
	}

	usage := in.Usage
	if usage == nil {
		_, operation := modelFromPath(in.Path)
		if operation != "embedContent" || a.client == nil {
			return 0, nil
		}
		total, err := a.CountTokens(ctx, model, in.RequestBody)
		if err != nil {
			return 0, fmt.Errorf("countTokens fallback: %w", err)
		}
		usage = &gateway.Usage{PromptTokens: total}
	}

	cost := float64(usage.PromptTokens)*rate.InputPerM/1e6 +
		float64(usage.CompletionTokens)*rate.OutputPerM/1e6
	return cost, nil
}

// CountTokens issues a countTokens side-call for model against body,
// used when an embedContent response carried no usage of its own.
func (a *Adapter) CountTokens(ctx context.Context, model string, body []byte) (int, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:countTokens", a.origin, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build countTokens request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("countTokens request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read countTokens response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("countTokens: status %d", resp.StatusCode)
	}
	return int(gjson.GetBytes(respBody, "totalTokens").Int()), nil
}

var _ gateway.Adapter = (*Adapter)(nil)
