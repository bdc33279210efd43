package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/maypok86/otter/v2"
	"golang.org/x/sync/singleflight"
)

const directoryURL = "https://openrouter.ai/api/v1/models"

const directoryKey = "models"

// modelRate holds OpenRouter's per-token pricing for one model, as
// quoted by the live directory (USD per token, not per million).
type modelRate struct {
	Prompt           float64
	Completion       float64
	Request          float64
	Image            float64
	InternalReasoning float64
}

// Directory caches OpenRouter's model pricing list behind a single
// entry, refetching the whole list on a miss and collapsing
// concurrent misses into one upstream call.
//
// A single-key cache rather than a generic response cache: general
// response caching is out of scope, but the model directory is
// pricing data the cost calculator must consult on every request, so
// it earns its own narrow cache.
type Directory struct {
	client *http.Client
	cache  *otter.Cache[string, map[string]modelRate]
	group  singleflight.Group
}

// NewDirectory creates a Directory that fetches from OpenRouter's
// public models endpoint using client.
func NewDirectory(client *http.Client) (*Directory, error) {
	c, err := otter.New[string, map[string]modelRate](&otter.Options[string, map[string]modelRate]{
		MaximumSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create directory cache: %w", err)
	}
	return &Directory{client: client, cache: c}, nil
}

// Rate returns the pricing rate for model, fetching (and caching) the
// full directory on first use or after a prior fetch failed to
// include the model. Concurrent callers miss together and share one
// upstream fetch.
func (d *Directory) Rate(ctx context.Context, model string) (modelRate, error) {
	rates, ok := d.cache.GetIfPresent(directoryKey)
	if ok {
		if rate, ok := rates[model]; ok {
			return rate, nil
		}
	}

	v, err, _ := d.group.Do(directoryKey, func() (interface{}, error) {
		return d.fetch(ctx)
	})
	if err != nil {
		return modelRate{}, err
	}
	fresh := v.(map[string]modelRate)
	d.cache.Set(directoryKey, fresh)

	rate, ok := fresh[model]
	if !ok {
		return modelRate{}, fmt.Errorf("openrouter: model %q not found in directory", model)
	}
	return rate, nil
}

type directoryResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Pricing struct {
			Prompt           string `json:"prompt"`
			Completion       string `json:"completion"`
			Request          string `json:"request"`
			Image            string `json:"image"`
			InternalReasoning string `json:"internal_reasoning"`
		} `json:"pricing"`
	} `json:"data"`
}

func (d *Directory) fetch(ctx context.Context) (map[string]modelRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directoryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch model directory: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model directory: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model directory fetch: status %d", resp.StatusCode)
	}

	var parsed directoryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode model directory: %w", err)
	}

	out := make(map[string]modelRate, len(parsed.Data))
	for _, m := range parsed.Data {
		out[m.ID] = modelRate{
			Prompt:            parseFloat(m.Pricing.Prompt),
			Completion:        parseFloat(m.Pricing.Completion),
			Request:           parseFloat(m.Pricing.Request),
			Image:             parseFloat(m.Pricing.Image),
			InternalReasoning: parseFloat(m.Pricing.InternalReasoning),
		}
	}
	return out, nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0
	}
	return f
}
