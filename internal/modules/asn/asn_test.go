package asn

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
	"github.com/rfs85/DicordEnumeration/internal/platform/cache"
	"github.com/rfs85/DicordEnumeration/internal/platform/httpclient"
	"github.com/rfs85/DicordEnumeration/internal/platform/logx"
	"github.com/rfs85/DicordEnumeration/internal/platform/registry"
	"github.com/rfs85/DicordEnumeration/internal/testutil"
)

const rdapBody = `{"handle":"NET-162-158-0-0-1","name":"CLOUDFLARENET","startAddress":"162.158.0.0","endAddress":"162.159.255.255","country":"US"}`

const bgpviewBody = `{"status":"ok","data":{"prefixes":[{"prefix":"162.159.128.0/19","asn":{"asn":13335,"name":"CLOUDFLARENET","description":"Cloudflare, Inc."}}]}}`

func newTestModule(t *testing.T, rdapStatus, bgpStatus int) (*Module, *int, *int) {
	t.Helper()

	rdapCalls := new(int)
	rdap := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*rdapCalls++
		w.WriteHeader(rdapStatus)
		if rdapStatus == http.StatusOK {
			w.Write([]byte(rdapBody))
		}
	}))
	t.Cleanup(rdap.Close)

	bgpCalls := new(int)
	bgp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*bgpCalls++
		w.WriteHeader(bgpStatus)
		if bgpStatus == http.StatusOK {
			w.Write([]byte(bgpviewBody))
		}
	}))
	t.Cleanup(bgp.Close)

	cfg := ports.DefaultModuleConfig()
	cfg.Custom["rdap_base"] = rdap.URL
	cfg.Custom["bgpview_base"] = bgp.URL
	cfg.Custom["domains"] = testutil.FixtureDomains[:2]

	mod := New(cfg, registry.Deps{
		HTTP:   httpclient.New(httpclient.Config{}, logx.NewQuiet()),
		Cache:  cache.NewMemoryCache(16),
		Logger: logx.NewQuiet(),
	})
	mod.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		return []net.IP{net.ParseIP(testutil.FixtureIPs[0])}, nil
	}
	return mod, rdapCalls, bgpCalls
}

func TestModule_BuildTasks(t *testing.T) {
	mod, _, _ := newTestModule(t, http.StatusOK, http.StatusOK)

	tasks, err := mod.BuildTasks(context.Background(), domain.NewTarget("discord", domain.ModeUnauth), ports.DefaultModuleConfig())
	testutil.AssertNoError(t, err, "build tasks")
	testutil.AssertEqual(t, len(tasks), 2, "one task per domain")

	for _, task := range tasks {
		testutil.AssertEqual(t, task.Source, domain.SourceRegistry, "registry source")
		testutil.AssertEqual(t, task.Module, moduleName, "module id")
		testutil.AssertNoError(t, task.Validate(), "task is valid")
	}
}

func TestModule_Probe(t *testing.T) {
	t.Run("maps addresses to network and origins", func(t *testing.T) {
		mod, _, _ := newTestModule(t, http.StatusOK, http.StatusOK)

		out := mod.probe(context.Background(), "discord.com")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "probe succeeds")

		finding := out.Payload.(Finding)
		testutil.AssertEqual(t, finding.Domain, "discord.com", "domain recorded")
		testutil.AssertEqual(t, finding.RegisteredDomain, "discord.com", "eTLD+1 computed")
		testutil.AssertContains(t, finding.Addresses, "162.159.128.233", "address resolved")
		testutil.AssertNotNil(t, finding.Network, "rdap network present")
		testutil.AssertEqual(t, finding.Network.Name, "CLOUDFLARENET", "network name parsed")
		testutil.AssertEqual(t, len(finding.Origins), 1, "one origin")
		testutil.AssertEqual(t, finding.Origins[0].ASN, 13335, "asn parsed")
		testutil.AssertEqual(t, finding.Origins[0].Prefix, "162.159.128.0/19", "prefix parsed")
	})

	t.Run("caches registry lookups per address", func(t *testing.T) {
		mod, rdapCalls, bgpCalls := newTestModule(t, http.StatusOK, http.StatusOK)

		for i := 0; i < 3; i++ {
			out := mod.probe(context.Background(), "discord.com")
			testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "probe succeeds")
		}
		testutil.AssertEqual(t, *rdapCalls, 1, "rdap fetched once")
		testutil.AssertEqual(t, *bgpCalls, 1, "bgpview fetched once")
	})

	t.Run("registry 5xx is transient", func(t *testing.T) {
		mod, _, _ := newTestModule(t, http.StatusServiceUnavailable, http.StatusOK)

		out := mod.probe(context.Background(), "discord.com")
		testutil.AssertEqual(t, out.Status, domain.StatusTransient, "retryable")
	})

	t.Run("registry 404 degrades to partial finding", func(t *testing.T) {
		mod, _, _ := newTestModule(t, http.StatusNotFound, http.StatusOK)

		out := mod.probe(context.Background(), "discord.com")
		testutil.AssertEqual(t, out.Status, domain.StatusSuccess, "partial data still succeeds")

		finding := out.Payload.(Finding)
		testutil.AssertTrue(t, finding.Network == nil, "no network block")
		testutil.AssertEqual(t, len(finding.LookupErrors), 1, "lookup error recorded")
		testutil.AssertEqual(t, len(finding.Origins), 1, "bgpview data kept")
	})

	t.Run("nxdomain is permanent", func(t *testing.T) {
		mod, _, _ := newTestModule(t, http.StatusOK, http.StatusOK)
		mod.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
			return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
		}

		out := mod.probe(context.Background(), "nope.invalid")
		testutil.AssertEqual(t, out.Status, domain.StatusPermanent, "nxdomain never retried")
	})

	t.Run("resolver timeout is transient", func(t *testing.T) {
		mod, _, _ := newTestModule(t, http.StatusOK, http.StatusOK)
		mod.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
			return nil, &net.DNSError{Err: "i/o timeout", Name: host, IsTimeout: true}
		}

		out := mod.probe(context.Background(), "discord.com")
		testutil.AssertEqual(t, out.Status, domain.StatusTransient, "timeout retried")
	})
}
