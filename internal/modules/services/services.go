// Package services implements the rest-api module: it probes the
// platform's public API surface and the reachability of its core
// service pages, recording which endpoints answer, which demand
// credentials and what rate-limit budget they advertise.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
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
			Description: "REST API surface and service page reachability",
			Source:      domain.SourceAPI,
		},
	); err != nil {
		logx.New().Warn("failed to register services module", "error", err.Error())
	}
}

const moduleName = domain.ModuleID("services")

// Endpoints públicos: responden sin credenciales o revelan que las exigen.
var unauthEndpoints = []string{
	"/gateway",
	"/voice/regions",
	"/applications/public",
	"/sticker-packs",
}

// Endpoints que solo tienen sentido con un token configurado.
var authEndpoints = []string{
	"/gateway/bot",
	"/users/@me",
	"/users/@me/guilds",
	"/users/@me/connections",
	"/oauth2/applications/@me",
}

// Páginas de servicio que delimitan la superficie pública de la plataforma.
var defaultPages = map[string]string{
	"cdn":        "https://cdn.discordapp.com",
	"media":      "https://media.discordapp.net",
	"status":     common.StatusBase,
	"support":    "https://support.discord.com",
	"developers": "https://discord.com/developers",
}

// Cabeceras de respuesta que interesan para el fingerprint del edge.
var edgeHeaders = []string{"Server", "Via", "CF-RAY", "CF-Cache-Status", "X-Cache"}

// Module implementa ports.Module para la superficie REST.
type Module struct {
	client *httpclient.Client
	logger logx.Logger

	apiBase string
	pages   map[string]string
}

// New crea el módulo con sus dependencias compartidas.
func New(cfg ports.ModuleConfig, deps registry.Deps) *Module {
	return &Module{
		client:  deps.HTTP,
		logger:  deps.Logger.With("module", "services"),
		apiBase: registry.GetStringConfig(cfg.Custom, "api_base", common.APIBase),
		pages:   defaultPages,
	}
}

// Name retorna el identificador del módulo.
func (m *Module) Name() domain.ModuleID { return moduleName }

// Description retorna una descripción corta.
func (m *Module) Description() string {
	return "REST API endpoint and service page enumeration"
}

// BuildTasks construye un probe por endpoint público, uno por página de
// servicio, y los endpoints autenticados solo cuando hay token.
func (m *Module) BuildTasks(ctx context.Context, target domain.Target, cfg ports.ModuleConfig) ([]domain.ProbeTask, error) {
	if m.client == nil {
		return nil, fmt.Errorf("services module requires an HTTP client")
	}

	endpoints := make([]string, 0, len(unauthEndpoints)+len(authEndpoints))
	endpoints = append(endpoints, unauthEndpoints...)
	if m.client.Authenticated() {
		endpoints = append(endpoints, authEndpoints...)
	}

	tasks := make([]domain.ProbeTask, 0, len(endpoints)+len(m.pages))
	for _, ep := range endpoints {
		endpoint := ep
		tasks = append(tasks, domain.ProbeTask{
			Source: domain.SourceAPI,
			Module: moduleName,
			Target: "api" + endpoint,
			Invoke: func(ctx context.Context) domain.Outcome {
				return m.probeEndpoint(ctx, endpoint)
			},
		})
	}

	names := make([]string, 0, len(m.pages))
	for name := range m.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, n := range names {
		name, url := n, m.pages[n]
		tasks = append(tasks, domain.ProbeTask{
			Source: domain.SourceAPI,
			Module: moduleName,
			Target: "page/" + name,
			Invoke: func(ctx context.Context) domain.Outcome {
				return m.probePage(ctx, name, url)
			},
		})
	}
	return tasks, nil
}

// RateLimitInfo refleja el presupuesto que el API anuncia en sus cabeceras.
type RateLimitInfo struct {
	Limit     string `json:"limit"`
	Remaining string `json:"remaining"`
	Reset     string `json:"reset"`
}

// EndpointFinding describe la postura de un endpoint del API.
type EndpointFinding struct {
	Endpoint  string          `json:"endpoint"`
	URL       string          `json:"url"`
	Status    int             `json:"status"`
	Exists    bool            `json:"exists"`
	Protected bool            `json:"protected"`
	RateLimit *RateLimitInfo  `json:"rate_limit,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (m *Module) probeEndpoint(ctx context.Context, endpoint string) domain.Outcome {
	url := m.apiBase + endpoint

	resp, err := m.client.GetJSON(ctx, url)
	if err != nil {
		return common.OutcomeFromError(fmt.Errorf("probing %s: %w", endpoint, err))
	}
	defer resp.Body.Close()

	finding := EndpointFinding{
		Endpoint:  endpoint,
		URL:       url,
		Status:    resp.StatusCode,
		RateLimit: rateLimitFrom(resp),
	}

	serr := httpclient.CheckStatus(resp)
	switch {
	case serr == nil:
		// Cuerpo incluido solo cuando el endpoint respondió datos.
		body, rerr := httpclient.ReadBody(resp)
		if rerr != nil {
			return domain.Transientf("reading %s: %v", endpoint, rerr)
		}
		finding.Exists = true
		if json.Valid(body) {
			finding.Data = json.RawMessage(body)
		}
	case errors.IsUnauthorized(serr):
		// Que exija credenciales ya es el hallazgo: el endpoint existe.
		finding.Exists = true
		finding.Protected = true
	case errors.IsNotFound(serr):
		finding.Exists = false
	case errors.IsTransient(serr):
		return domain.Transientf("probing %s: %v", endpoint, serr)
	default:
		return domain.Permanentf("probing %s: %v", endpoint, serr)
	}

	m.logger.Debug("endpoint probed", "endpoint", endpoint, "status", resp.StatusCode)
	return domain.Success(finding)
}

// PageFinding describe la reachability de una página de servicio.
type PageFinding struct {
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (m *Module) probePage(ctx context.Context, name, url string) domain.Outcome {
	resp, err := m.client.Head(ctx, url, nil)
	if err != nil {
		return common.OutcomeFromError(fmt.Errorf("probing page %s: %w", name, err))
	}
	// Algunos edges rechazan HEAD; GET confirma antes de declarar el fallo.
	if resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		resp, err = m.client.Get(ctx, url, nil)
		if err != nil {
			return common.OutcomeFromError(fmt.Errorf("probing page %s: %w", name, err))
		}
	}
	defer resp.Body.Close()

	if serr := httpclient.CheckStatus(resp); serr != nil && errors.IsTransient(serr) {
		return domain.Transientf("probing page %s: %v", name, serr)
	}

	finding := PageFinding{
		Name:    name,
		URL:     url,
		Status:  resp.StatusCode,
		Headers: make(map[string]string),
	}
	for _, h := range edgeHeaders {
		if v := resp.Header.Get(h); v != "" {
			finding.Headers[strings.ToLower(h)] = v
		}
	}
	return domain.Success(finding)
}

func rateLimitFrom(resp *http.Response) *RateLimitInfo {
	limit := resp.Header.Get("X-RateLimit-Limit")
	if limit == "" {
		return nil
	}
	return &RateLimitInfo{
		Limit:     limit,
		Remaining: resp.Header.Get("X-RateLimit-Remaining"),
		Reset:     resp.Header.Get("X-RateLimit-Reset"),
	}
}

// Close libera recursos del módulo.
func (m *Module) Close() error { return nil }
