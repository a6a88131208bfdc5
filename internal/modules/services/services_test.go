package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
	"github.com/rfs85/DicordEnumeration/internal/platform/httpclient"
	"github.com/rfs85/DicordEnumeration/internal/platform/logx"
	"github.com/rfs85/DicordEnumeration/internal/platform/registry"
	"github.com/rfs85/DicordEnumeration/internal/testutil"
)

func newTestModule(t *testing.T, apiBase, token string) *Module {
	t.Helper()
	client := httpclient.New(httpclient.Config{Timeout: 2 * time.Second, Token: token}, logx.NewQuiet())

	cfg := ports.DefaultModuleConfig()
	cfg.Custom["api_base"] = apiBase

	return New(cfg, registry.Deps{HTTP: client, Logger: logx.NewQuiet()})
}

func TestModule_BuildTasks(t *testing.T) {
	t.Run("without token only public endpoints", func(t *testing.T) {
		mod := newTestModule(t, "http://api.test", "")
		tasks, err := mod.BuildTasks(context.Background(), domain.NewTarget("discord", domain.ModeUnauth), ports.DefaultModuleConfig())
		testutil.AssertNoError(t, err, "build tasks")
		testutil.AssertEqual(t, len(tasks), len(unauthEndpoints)+len(defaultPages), "public probes only")

		for _, task := range tasks {
			testutil.AssertEqual(t, task.Source, domain.SourceAPI, "rest-api source")
			testutil.AssertNoError(t, task.Validate(), "task is valid")
		}
	})

	t.Run("token adds authenticated endpoints", func(t *testing.T) {
		mod := newTestModule(t, "http://api.test", "example-token")
		tasks, err := mod.BuildTasks(context.Background(), domain.NewTarget("discord", domain.ModeAuth), ports.DefaultModuleConfig())
		testutil.AssertNoError(t, err, "build tasks")
		testutil.AssertEqual(t, len(tasks), len(unauthEndpoints)+len(authEndpoints)+len(defaultPages), "auth probes included")

		var targets []string
		for _, task := range tasks {
			targets = append(targets, task.Target)
		}
		testutil.AssertContains(t, targets, "api/users/@me", "auth endpoint present")
	})

	t.Run("missing client is a setup failure", func(t *testing.T) {
		mod := New(ports.DefaultModuleConfig(), registry.Deps{Logger: logx.NewQuiet()})
		_, err := mod.BuildTasks(context.Background(), domain.NewTarget("discord", domain.ModeUnauth), ports.DefaultModuleConfig())
		testutil.AssertError(t, err, "no client configured")
	})
}

func TestProbeEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gateway":
			w.Header().Set("X-RateLimit-Limit", "5")
			w.Header().Set("X-RateLimit-Remaining", "4")
			w.Header().Set("X-RateLimit-Reset", "1700000000")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"url":"wss://gateway.discord.gg"}`))
		case "/users/@me":
			w.WriteHeader(http.StatusUnauthorized)
		case "/applications/public":
			w.WriteHeader(http.StatusNotFound)
		case "/voice/regions":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	mod := newTestModule(t, server.URL, "")

	t.Run("open endpoint captures payload and budget", func(t *testing.T) {
		out := mod.probeEndpoint(context.Background(), "/gateway")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "probe succeeds")

		finding := out.Payload.(EndpointFinding)
		testutil.AssertTrue(t, finding.Exists, "endpoint exists")
		testutil.AssertFalse(t, finding.Protected, "no auth required")
		testutil.AssertContains(t, string(finding.Data), "gateway.discord.gg", "payload captured")
		testutil.AssertNotNil(t, finding.RateLimit, "rate limit advertised")
		testutil.AssertEqual(t, finding.RateLimit.Limit, "5", "limit header")
		testutil.AssertEqual(t, finding.RateLimit.Remaining, "4", "remaining header")
	})

	t.Run("401 means the endpoint exists and is protected", func(t *testing.T) {
		out := mod.probeEndpoint(context.Background(), "/users/@me")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "posture is a finding")

		finding := out.Payload.(EndpointFinding)
		testutil.AssertTrue(t, finding.Exists, "endpoint exists")
		testutil.AssertTrue(t, finding.Protected, "auth enforced")
	})

	t.Run("404 records an absent endpoint", func(t *testing.T) {
		out := mod.probeEndpoint(context.Background(), "/applications/public")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "absence is a finding")
		testutil.AssertFalse(t, out.Payload.(EndpointFinding).Exists, "endpoint absent")
	})

	t.Run("503 is transient", func(t *testing.T) {
		out := mod.probeEndpoint(context.Background(), "/voice/regions")
		testutil.AssertEqual(t, out.Status, domain.StatusTransient, "retryable")
	})

	t.Run("unexpected client error is permanent", func(t *testing.T) {
		out := mod.probeEndpoint(context.Background(), "/nope")
		testutil.AssertEqual(t, out.Status, domain.StatusPermanent, "not retryable")
	})

	t.Run("connection failure is transient", func(t *testing.T) {
		out := newTestModule(t, "http://127.0.0.1:1", "").probeEndpoint(context.Background(), "/gateway")
		testutil.AssertEqual(t, out.Status, domain.StatusTransient, "network failure retried")
	})
}

func TestProbePage(t *testing.T) {
	var sawGet bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/edge":
			w.Header().Set("Server", "cloudflare")
			w.Header().Set("CF-RAY", "8b1c2d3e4f5a6b7c-MAD")
			w.WriteHeader(http.StatusOK)
		case "/no-head":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			sawGet = true
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	mod := newTestModule(t, server.URL, "")

	t.Run("captures edge fingerprint headers", func(t *testing.T) {
		out := mod.probePage(context.Background(), "cdn", server.URL+"/edge")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "page reachable")

		finding := out.Payload.(PageFinding)
		testutil.AssertEqual(t, finding.Status, http.StatusOK, "status recorded")
		testutil.AssertEqual(t, finding.Headers["server"], "cloudflare", "server header")
		testutil.AssertTrue(t, strings.HasSuffix(finding.Headers["cf-ray"], "-MAD"), "ray id captured")
	})

	t.Run("falls back to GET when HEAD is rejected", func(t *testing.T) {
		out := mod.probePage(context.Background(), "support", server.URL+"/no-head")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "page reachable via GET")
		testutil.AssertTrue(t, sawGet, "GET fallback used")
		testutil.AssertEqual(t, out.Payload.(PageFinding).Status, http.StatusOK, "final status recorded")
	})

	t.Run("unreachable page is transient", func(t *testing.T) {
		out := mod.probePage(context.Background(), "status", "http://127.0.0.1:1/")
		testutil.AssertEqual(t, out.Status, domain.StatusTransient, "network failure retried")
	})

	t.Run("404 is still a recorded posture", func(t *testing.T) {
		out := mod.probePage(context.Background(), "media", server.URL+"/gone")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "posture recorded")
		testutil.AssertEqual(t, out.Payload.(PageFinding).Status, http.StatusNotFound, "status recorded")
	})
}
