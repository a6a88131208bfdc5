package cdn

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

func newTestModule(t *testing.T, bases ...string) *Module {
	t.Helper()
	client := httpclient.New(httpclient.Config{Timeout: 2 * time.Second}, logx.NewQuiet())

	cfg := ports.DefaultModuleConfig()
	if len(bases) > 0 {
		cfg.Custom["bases"] = bases
	}
	return New(cfg, registry.Deps{HTTP: client, Logger: logx.NewQuiet()})
}

func TestModule_BuildTasks(t *testing.T) {
	t.Run("one probe per host and family", func(t *testing.T) {
		mod := newTestModule(t, "https://cdn.discordapp.com", "https://media.discordapp.net")
		tasks, err := mod.BuildTasks(context.Background(), domain.NewTarget("discord", domain.ModeUnauth), ports.DefaultModuleConfig())
		testutil.AssertNoError(t, err, "build tasks")
		testutil.AssertEqual(t, len(tasks), 2*len(endpointFamilies), "host times family")

		var targets []string
		for _, task := range tasks {
			testutil.AssertEqual(t, task.Source, domain.SourceCDN, "cdn source")
			testutil.AssertNoError(t, task.Validate(), "task is valid")
			targets = append(targets, task.Target)
		}
		testutil.AssertContains(t, targets, "cdn.discordapp.com/attachments", "attachments probe")
		testutil.AssertContains(t, targets, "media.discordapp.net/stickers", "stickers probe")
	})

	t.Run("defaults cover the known asset hosts", func(t *testing.T) {
		mod := newTestModule(t)
		tasks, err := mod.BuildTasks(context.Background(), domain.NewTarget("discord", domain.ModeUnauth), ports.DefaultModuleConfig())
		testutil.AssertNoError(t, err, "build tasks")
		testutil.AssertEqual(t, len(tasks), 3*len(endpointFamilies), "three default hosts")
	})

	t.Run("missing client is a setup failure", func(t *testing.T) {
		mod := New(ports.DefaultModuleConfig(), registry.Deps{Logger: logx.NewQuiet()})
		_, err := mod.BuildTasks(context.Background(), domain.NewTarget("discord", domain.ModeUnauth), ports.DefaultModuleConfig())
		testutil.AssertError(t, err, "no client configured")
	})
}

func TestProbeFamily(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/avatars/"):
			w.Header().Set("Server", "cloudflare")
			w.Header().Set("CF-RAY", "8b1c2d3e4f5a6b7c-MAD")
			w.Header().Set("CF-Cache-Status", "MISS")
			w.WriteHeader(http.StatusNotFound)
		case strings.HasPrefix(r.URL.Path, "/attachments/"):
			w.Header().Set("X-Served-By", "cache-mad22020-MAD")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, "/emojis/"):
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()

	host := hostOf(server.URL)
	mod := newTestModule(t, server.URL)

	t.Run("404 with edge headers is the expected posture", func(t *testing.T) {
		out := mod.probeFamily(context.Background(), server.URL, host, "avatars")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "probe succeeds")

		finding := out.Payload.(FamilyFinding)
		testutil.AssertTrue(t, finding.Expected, "404 expected for unknown asset")
		testutil.AssertEqual(t, finding.Provider, "cloudflare", "provider detected")
		testutil.AssertEqual(t, finding.Headers["cf-cache-status"], "MISS", "cache header captured")
	})

	t.Run("2xx on an unknown asset is flagged", func(t *testing.T) {
		out := mod.probeFamily(context.Background(), server.URL, host, "attachments")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "probe succeeds")

		finding := out.Payload.(FamilyFinding)
		testutil.AssertFalse(t, finding.Expected, "200 is not the sane posture")
		testutil.AssertEqual(t, finding.Provider, "fastly", "provider detected from served-by")
		testutil.AssertEqual(t, finding.Headers["x-cache"], "HIT", "cache header captured")
	})

	t.Run("403 is also expected", func(t *testing.T) {
		out := mod.probeFamily(context.Background(), server.URL, host, "icons")
		testutil.AssertTrue(t, out.Payload.(FamilyFinding).Expected, "403 expected")
	})

	t.Run("5xx is transient", func(t *testing.T) {
		out := mod.probeFamily(context.Background(), server.URL, host, "emojis")
		testutil.AssertEqual(t, out.Status, domain.StatusTransient, "retryable")
	})

	t.Run("connection failure is transient", func(t *testing.T) {
		out := mod.probeFamily(context.Background(), "http://127.0.0.1:1", "127.0.0.1:1", "avatars")
		testutil.AssertEqual(t, out.Status, domain.StatusTransient, "network failure retried")
	})
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"cloudflare via ray id", map[string]string{"CF-RAY": "abc-MAD"}, "cloudflare"},
		{"cloudflare via server", map[string]string{"Server": "cloudflare"}, "cloudflare"},
		{"fastly via served-by", map[string]string{"X-Served-By": "cache-mad22020"}, "fastly"},
		{"fastly via varnish", map[string]string{"Via": "1.1 varnish"}, "fastly"},
		{"akamai", map[string]string{"Server": "AkamaiGHost"}, "akamai"},
		{"cloudfront", map[string]string{"Via": "1.1 abc.cloudfront.net (CloudFront)"}, "cloudfront"},
		{"unknown", map[string]string{"Server": "nginx"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			testutil.AssertEqual(t, DetectProvider(h), tt.want, "provider")
		})
	}
}
