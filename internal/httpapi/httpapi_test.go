package httpapi

import (
	"context"
	"net/http"
	"testing"

	gateway "github.com/aipipe/gateway/internal"
	ledgersqlite "github.com/aipipe/gateway/internal/ledger/sqlite"
	"github.com/aipipe/gateway/internal/token"
)

// fakeAdapter is a minimal, configurable gateway.Adapter for pipeline
// tests. It proxies to upstreamURL unless direct is set, in which case
// Transform returns a direct result without any upstream fetch.
type fakeAdapter struct {
	name        string
	upstreamURL string
	pricedModel string
	cost        float64

	direct      []byte
	directModel string
	directUsage *gateway.Usage

	transformErr *gateway.APIError

	lastCostInput gateway.CostInput
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Transform(_ context.Context, in gateway.TransformInput) (*gateway.TransformResult, error) {
	if f.transformErr != nil {
		return &gateway.TransformResult{Err: f.transformErr}, nil
	}
	if f.direct != nil {
		return &gateway.TransformResult{Direct: f.direct, DirectModel: f.directModel, DirectUsage: f.directUsage}, nil
	}
	return &gateway.TransformResult{URL: f.upstreamURL + in.Path, Header: in.Header.Clone(), Body: in.Body}, nil
}

func (f *fakeAdapter) Parse(data []byte) (string, *gateway.Usage) {
	return f.pricedModel, &gateway.Usage{PromptTokens: 10, CompletionTokens: 5}
}

func (f *fakeAdapter) Cost(_ context.Context, in gateway.CostInput) (float64, error) {
	f.lastCostInput = in
	return f.cost, nil
}

var _ gateway.Adapter = (*fakeAdapter)(nil)

func newTestLedger(t *testing.T) *ledgersqlite.Store {
	t.Helper()
	path := t.TempDir() + "/test.db"
	s, err := ledgersqlite.New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestToken(t *testing.T, admins ...string) *token.Service {
	t.Helper()
	s, err := token.New(context.Background(), "test-secret", admins, "")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// mintIdentity mints an identity token for email via an admin caller,
// sidestepping the JWKS-backed external-credential flow this package
// doesn't need to exercise.
func mintIdentity(t *testing.T, svc *token.Service, adminEmail, email string) string {
	t.Helper()
	tok, err := svc.AdminMint(adminEmail, email)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func newTestServer(adapters map[string]gateway.Adapter, ledger *ledgersqlite.Store, tok *token.Service) *Server {
	return &Server{
		Token:          tok,
		Ledger:         ledger,
		Adapters:       adapters,
		UpstreamClient: http.DefaultClient,
	}
}
