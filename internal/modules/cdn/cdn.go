// Package cdn implements the cdn-endpoint module: it probes the asset
// distribution hosts of the platform, checks how each endpoint family
// responds to unknown asset IDs and fingerprints the edge provider
// from the cache headers it leaks.
package cdn

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
	"github.com/rfs85/DicordEnumeration/internal/modules/common"
	"github.com/rfs85/DicordEnumeration/internal/platform/errors"
	"github.com/rfs85/DicordEnumeration/internal/platform/httpclient"
	"github.com/rfs85/DicordEnumeration/internal/platform/logx"
	"github.com/rfs85/DicordEnumeration/internal/platform/registry"
)

// Auto-registro del módulo al importar el package
func init() {
	if err := registry.Global().Register(
		string(moduleName),
		func(cfg ports.ModuleConfig, deps registry.Deps) (ports.Module, error) {
			return New(cfg, deps), nil
		},
		ports.ModuleMetadata{
			Name:        moduleName,
			Description: "CDN endpoint family posture and edge fingerprinting",
			Source:      domain.SourceCDN,
		},
	); err != nil {
		logx.New().Warn("failed to register cdn module", "error", err.Error())
	}
}

const (
	moduleName = domain.ModuleID("cdn")

	// ID inexistente con forma de snowflake: la respuesta esperada del
	// edge ante un asset desconocido es el dato que buscamos.
	probeID = "986512070452828221"
)

// Familias de endpoints servidas por los hosts de assets.
var endpointFamilies = []string{
	"attachments",
	"avatars",
	"icons",
	"banners",
	"splashes",
	"emojis",
	"stickers",
}

// Cabeceras de cache que delatan la infraestructura del edge.
var cacheHeaders = []string{"Server", "Via", "CF-RAY", "CF-Cache-Status", "X-Cache", "X-Cache-Hits", "X-Served-By", "Age"}

// Module implementa ports.Module para la superficie CDN.
type Module struct {
	client *httpclient.Client
	logger logx.Logger

	bases []string
}

// New crea el módulo con sus dependencias compartidas.
func New(cfg ports.ModuleConfig, deps registry.Deps) *Module {
	defaults := make([]string, 0, len(common.CDNHosts))
	for _, h := range common.CDNHosts {
		defaults = append(defaults, "https://"+h)
	}
	return &Module{
		client: deps.HTTP,
		logger: deps.Logger.With("module", "cdn"),
		bases:  registry.GetSliceConfig(cfg.Custom, "bases", defaults),
	}
}

// Name retorna el identificador del módulo.
func (m *Module) Name() domain.ModuleID { return moduleName }

// Description retorna una descripción corta.
func (m *Module) Description() string {
	return "asset host endpoint families and edge provider detection"
}

// BuildTasks construye un probe por host y familia de endpoints.
func (m *Module) BuildTasks(ctx context.Context, target domain.Target, cfg ports.ModuleConfig) ([]domain.ProbeTask, error) {
	if m.client == nil {
		return nil, fmt.Errorf("cdn module requires an HTTP client")
	}
	if len(m.bases) == 0 {
		return nil, fmt.Errorf("no asset hosts configured")
	}

	tasks := make([]domain.ProbeTask, 0, len(m.bases)*len(endpointFamilies))
	for _, b := range m.bases {
		base := b
		host := hostOf(base)
		for _, f := range endpointFamilies {
			family := f
			tasks = append(tasks, domain.ProbeTask{
				Source: domain.SourceCDN,
				Module: moduleName,
				Target: host + "/" + family,
				Invoke: func(ctx context.Context) domain.Outcome {
					return m.probeFamily(ctx, base, host, family)
				},
			})
		}
	}
	return tasks, nil
}

// FamilyFinding describe cómo responde una familia de endpoints ante
// un asset desconocido.
type FamilyFinding struct {
	Host     string            `json:"host"`
	Family   string            `json:"family"`
	URL      string            `json:"url"`
	Status   int               `json:"status"`
	Expected bool              `json:"expected"`
	Provider string            `json:"provider,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

func (m *Module) probeFamily(ctx context.Context, base, host, family string) domain.Outcome {
	url := base + "/" + family + "/" + probeID

	resp, err := m.client.Head(ctx, url, nil)
	if err != nil {
		return common.OutcomeFromError(fmt.Errorf("probing %s/%s: %w", host, family, err))
	}
	defer resp.Body.Close()

	if serr := httpclient.CheckStatus(resp); serr != nil {
		if errors.IsTransient(serr) {
			return domain.Transientf("probing %s/%s: %v", host, family, serr)
		}
		// 404 y 403 son la postura sana del edge, no fallos del probe.
	}

	finding := FamilyFinding{
		Host:     host,
		Family:   family,
		URL:      url,
		Status:   resp.StatusCode,
		Expected: resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden,
		Provider: DetectProvider(resp.Header),
		Headers:  make(map[string]string),
	}
	for _, h := range cacheHeaders {
		if v := resp.Header.Get(h); v != "" {
			finding.Headers[strings.ToLower(h)] = v
		}
	}

	if !finding.Expected {
		m.logger.Info("unexpected edge response", "host", host, "family", family, "status", resp.StatusCode)
	}
	return domain.Success(finding)
}

// DetectProvider infiere el proveedor del edge a partir de las cabeceras
// de respuesta.
func DetectProvider(h http.Header) string {
	server := strings.ToLower(h.Get("Server"))
	switch {
	case h.Get("CF-RAY") != "" || strings.Contains(server, "cloudflare"):
		return "cloudflare"
	case h.Get("X-Served-By") != "" || strings.Contains(strings.ToLower(h.Get("Via")), "varnish"):
		return "fastly"
	case strings.Contains(server, "akamai") || h.Get("X-Akamai-Transformed") != "":
		return "akamai"
	case strings.Contains(server, "cloudfront") || strings.Contains(strings.ToLower(h.Get("Via")), "cloudfront"):
		return "cloudfront"
	default:
		return ""
	}
}

func hostOf(base string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(base, "https://"), "http://")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

// Close libera recursos del módulo.
func (m *Module) Close() error { return nil }
