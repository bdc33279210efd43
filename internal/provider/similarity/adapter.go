// Package similarity implements a direct-result adapter that embeds
// a set of documents and
// topics in one upstream call and returns a cosine-similarity matrix
// instead of proxying a response.
package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/tidwall/gjson"

	gateway "github.com/aipipe/gateway/internal"
)

const (
	name               = "similarity"
	defaultModel       = "text-embedding-3-small"
	defaultPrecision   = 5
	embeddingsEndpoint = "/v1/embeddings"
)

// normalizeItems flattens a docs/topics array where each element is
// either a bare string or an object carrying a "value" field, per the
// endpoint's documented input shape.
func normalizeItems(arr gjson.Result) ([]string, error) {
	if !arr.Exists() {
		return nil, nil
	}
	if !arr.IsArray() {
		return nil, fmt.Errorf("docs and topics must be arrays")
	}
	items := arr.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch {
		case item.Type == gjson.String:
			out = append(out, item.String())
		case item.IsObject() && item.Get("value").Exists():
			out = append(out, item.Get("value").String())
		default:
			return nil, fmt.Errorf("each docs/topics item must be a string or an object with a value field")
		}
	}
	return out, nil
}

type result struct {
	Model      string      `json:"model"`
	Similarity [][]float64 `json:"similarity"`
	Usage      struct {
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}

// Adapter implements gateway.Adapter for the similarity endpoint. It
// calls origin's embeddings endpoint directly with apiKey rather than
// going through the OpenAI adapter's Transform. The server's apiKey is
// used even when the request arrived with a caller-supplied native key.
type Adapter struct {
	apiKey string
	origin string
	client *http.Client
	cost   gateway.Adapter
}

// New creates a similarity adapter. cost is consulted for pricing the
// embeddings call (normally the OpenAI adapter, whose pricing table
// already covers embedding models).
func New(apiKey, origin string, client *http.Client, cost gateway.Adapter) *Adapter {
	return &Adapter{apiKey: apiKey, origin: origin, client: client, cost: cost}
}

func (a *Adapter) Name() string { return name }

// Transform validates the request body and computes the similarity
// matrix as a direct result; it never forwards a request for the
// gateway to proxy.
func (a *Adapter) Transform(ctx context.Context, in gateway.TransformInput) (*gateway.TransformResult, error) {
	root := gjson.ParseBytes(in.Body)
	if !root.IsObject() {
		return &gateway.TransformResult{Err: &gateway.APIError{
			Status:  http.StatusBadRequest,
			Message: "invalid request body",
		}}, nil
	}
	docs, err := normalizeItems(root.Get("docs"))
	if err != nil {
		return &gateway.TransformResult{Err: &gateway.APIError{Status: http.StatusBadRequest, Message: err.Error()}}, nil
	}
	topics, err := normalizeItems(root.Get("topics"))
	if err != nil {
		return &gateway.TransformResult{Err: &gateway.APIError{Status: http.StatusBadRequest, Message: err.Error()}}, nil
	}
	if len(docs) == 0 {
		return &gateway.TransformResult{Err: &gateway.APIError{
			Status:  http.StatusBadRequest,
			Message: "docs must be non-empty",
		}}, nil
	}
	model := root.Get("model").String()
	if model == "" {
		model = defaultModel
	}
	precision := int(root.Get("precision").Int())
	if precision <= 0 {
		precision = defaultPrecision
	}

	inputs := make([]string, 0, len(docs)+len(topics))
	inputs = append(inputs, docs...)
	inputs = append(inputs, topics...)

	vectors, promptTokens, err := a.embed(ctx, model, inputs)
	if err != nil {
		return &gateway.TransformResult{Err: &gateway.APIError{
			Status:  http.StatusBadGateway,
			Message: "embeddings upstream failed",
		}}, nil
	}

	docVecs := vectors[:len(docs)]
	topicVecs := vectors[len(docs):]
	if len(topics) == 0 {
		topicVecs = docVecs
	}

	matrix := make([][]float64, len(docVecs))
	for i, d := range docVecs {
		row := make([]float64, len(topicVecs))
		for j, tpc := range topicVecs {
			row[j] = round(cosine(d, tpc), precision)
		}
		matrix[i] = row
	}

	out := result{Model: model, Similarity: matrix}
	out.Usage.PromptTokens = promptTokens
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal similarity result: %w", err)
	}

	return &gateway.TransformResult{
		Direct:      body,
		DirectModel: model,
		DirectUsage: &gateway.Usage{PromptTokens: promptTokens},
	}, nil
}

// Parse is unused: similarity results never pass back through the
// SSE/response parser, they are computed directly in Transform.
func (a *Adapter) Parse(data []byte) (string, *gateway.Usage) {
	return "", nil
}

// Cost delegates to the wrapped embeddings cost calculator.
func (a *Adapter) Cost(ctx context.Context, in gateway.CostInput) (float64, error) {
	return a.cost.Cost(ctx, in)
}

func (a *Adapter) embed(ctx context.Context, model string, inputs []string) ([][]float64, int, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model": model,
		"input": inputs,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.origin+embeddingsEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read embeddings response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("embeddings: status %d", resp.StatusCode)
	}

	data := gjson.ParseBytes(body).Get("data").Array()
	vectors := make([][]float64, len(data))
	for i, item := range data {
		values := item.Get("embedding").Array()
		vec := make([]float64, len(values))
		for j, v := range values {
			vec[j] = v.Float()
		}
		vectors[i] = vec
	}
	promptTokens := int(gjson.GetBytes(body, "usage.prompt_tokens").Int())
	return vectors, promptTokens, nil
}

func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func round(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}

var _ gateway.Adapter = (*Adapter)(nil)
