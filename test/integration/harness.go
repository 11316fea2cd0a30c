// Package integration provides a reusable test harness for end-to-end
// testing of the admin server. It builds a full HTTP server from an
// OpenAPI document, with in-memory storage and a real token signer.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rasinmuhammed/matrix-admin/internal/audit"
	"github.com/rasinmuhammed/matrix-admin/internal/config"
	"github.com/rasinmuhammed/matrix-admin/internal/crud"
	"github.com/rasinmuhammed/matrix-admin/internal/discovery"
	"github.com/rasinmuhammed/matrix-admin/internal/gateway"
	"github.com/rasinmuhammed/matrix-admin/internal/observability"
	"github.com/rasinmuhammed/matrix-admin/internal/registry"
	"github.com/rasinmuhammed/matrix-admin/internal/schema"
	"github.com/rasinmuhammed/matrix-admin/internal/token"
	"github.com/rasinmuhammed/matrix-admin/model"
)

// testSecret is the signing secret both the server and the tests use.
const testSecret = "integration-test-secret"

// adminDocument is the OpenAPI document the harness registers models
// from. Content is polymorphic; Contact is a plain record type.
const adminDocument = `
openapi: 3.0.3
info:
  title: Admin Test API
  version: "1.0"
paths: {}
components:
  schemas:
    Contact:
      type: object
      required: [id, name, email]
      properties:
        id:
          type: integer
        name:
          type: string
          maxLength: 120
        email:
          type: string
          maxLength: 254
        notes:
          type: string
        created_at:
          type: string
          format: date-time
    Content:
      type: object
      required: [id, title]
      properties:
        id:
          type: integer
        title:
          type: string
          maxLength: 200
        status:
          type: string
          maxLength: 20
      discriminator:
        propertyName: kind
        mapping:
          article: "#/components/schemas/Article"
          video: "#/components/schemas/Video"
      oneOf:
        - $ref: "#/components/schemas/Article"
        - $ref: "#/components/schemas/Video"
    Article:
      type: object
      properties:
        id:
          type: integer
        title:
          type: string
          maxLength: 200
        body:
          type: string
    Video:
      type: object
      properties:
        id:
          type: integer
        title:
          type: string
          maxLength: 200
        duration:
          type: integer
`

// TestHarness bundles a running server with direct access to its parts.
type TestHarness struct {
	t        *testing.T
	Server   *httptest.Server
	Config   *config.Config
	Signer   *token.Signer
	Registry *registry.Registry
	Engine   *crud.Engine
}

// HarnessOption adjusts server configuration before the router is built.
type HarnessOption func(*config.Config)

// WithSingleUseTokens makes every capability token spendable once.
func WithSingleUseTokens() HarnessOption {
	return func(cfg *config.Config) {
		cfg.Admin.SingleUseTokens = true
	}
}

// NewTestHarness builds and starts a complete admin server. The server
// is shut down automatically when the test finishes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	cfg := config.Defaults()
	cfg.RateLimit.Enabled = false
	for _, opt := range opts {
		opt(cfg)
	}

	signer, err := token.NewSigner(testSecret, cfg.Admin.TokenSalt)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	schemas, err := schema.LoadOpenAPIData(context.Background(), []byte(adminDocument))
	if err != nil {
		t.Fatalf("LoadOpenAPIData: %v", err)
	}

	reg := registry.New()
	for _, s := range schemas {
		if err := reg.Register(discovery.Describe(s)); err != nil {
			t.Fatalf("Register(%s): %v", s.Name, err)
		}
	}

	engine := crud.NewEngine(crud.NewMemStore())

	var guard token.ReplayGuard
	if cfg.Admin.SingleUseTokens {
		guard = token.NewMemoryReplayGuard()
	}

	router := gateway.NewRouter(gateway.Dependencies{
		Config:   cfg,
		Registry: reg,
		Engine:   engine,
		Signer:   signer,
		Replay:   guard,
		Audit:    audit.NewLogger(audit.NewMemoryStore(), zap.NewNop()),
		Logger:   zap.NewNop(),
		Ready: observability.ReadinessChecks{
			ModelsRegistered: func() bool { return reg.Len() > 0 },
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestHarness{
		t:        t,
		Server:   srv,
		Config:   cfg,
		Signer:   signer,
		Registry: reg,
		Engine:   engine,
	}
}

// MintToken issues a capability token the way the server would.
func (h *TestHarness) MintToken(modelName, action, recordID string) string {
	h.t.Helper()
	tok, err := h.Signer.CreateCapabilityToken(modelName, action, "", recordID)
	if err != nil {
		h.t.Fatalf("CreateCapabilityToken: %v", err)
	}
	return tok
}

// SeedContacts inserts n contact records directly through the engine.
func (h *TestHarness) SeedContacts(n int) {
	h.t.Helper()
	desc, err := h.Registry.Get("contact")
	if err != nil {
		h.t.Fatalf("Get(contact): %v", err)
	}
	for i := 1; i <= n; i++ {
		_, err := h.Engine.Create(context.Background(), desc, model.Record{
			"name":       nameFor(i),
			"email":      nameFor(i) + "@example.com",
			"created_at": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		})
		if err != nil {
			h.t.Fatalf("seed contact %d: %v", i, err)
		}
	}
}

func nameFor(i int) string {
	names := []string{"ada", "grace", "alan", "edsger", "barbara", "donald"}
	return names[i%len(names)]
}

// Get performs a GET request against the running server.
func (h *TestHarness) Get(path string) *http.Response {
	h.t.Helper()
	resp, err := http.Get(h.Server.URL + path)
	if err != nil {
		h.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// PostJSON performs a POST request with a JSON body.
func (h *TestHarness) PostJSON(path string, body any) *http.Response {
	h.t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		h.t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(h.Server.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		h.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// Delete performs a DELETE request.
func (h *TestHarness) Delete(path string) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodDelete, h.Server.URL+path, nil)
	if err != nil {
		h.t.Fatalf("build DELETE %s: %v", path, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

// ReadBody drains and returns the response body as a string.
func (h *TestHarness) ReadBody(resp *http.Response) string {
	h.t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read body: %v", err)
	}
	return string(raw)
}

// DecodeBody drains the response body into a generic map.
func (h *TestHarness) DecodeBody(resp *http.Response) map[string]any {
	h.t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		h.t.Fatalf("decode body: %v", err)
	}
	return out
}
