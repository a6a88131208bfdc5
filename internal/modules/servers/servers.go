// Package servers implements the guild discovery module: it walks the
// public discovery categories, resolves well-known invite codes and,
// with credentials, lists the guilds the token can see.
package servers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

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
			Description: "public guild discovery and invite resolution",
			Source:      domain.SourceAPI,
		},
	); err != nil {
		logx.New().Warn("failed to register servers module", "error", err.Error())
	}
}

const moduleName = domain.ModuleID("servers")

// Categorías populares del directorio de discovery.
var defaultCategories = []string{
	"gaming",
	"music",
	"education",
	"science",
	"technology",
	"anime",
	"entertainment",
	"community",
	"creative",
}

// Invites vanity estables de comunidades oficiales.
var defaultInvites = []string{
	"discord",
	"discord-developers",
	"discord-townhall",
}

// Module implementa ports.Module para el descubrimiento de guilds.
type Module struct {
	client *httpclient.Client
	logger logx.Logger

	apiBase    string
	categories []string
	invites    []string
}

// New crea el módulo con sus dependencias compartidas.
func New(cfg ports.ModuleConfig, deps registry.Deps) *Module {
	return &Module{
		client:     deps.HTTP,
		logger:     deps.Logger.With("module", "servers"),
		apiBase:    registry.GetStringConfig(cfg.Custom, "api_base", common.APIBase),
		categories: registry.GetSliceConfig(cfg.Custom, "categories", defaultCategories),
		invites:    registry.GetSliceConfig(cfg.Custom, "invites", defaultInvites),
	}
}

// Name retorna el identificador del módulo.
func (m *Module) Name() domain.ModuleID { return moduleName }

// Description retorna una descripción corta.
func (m *Module) Description() string {
	return "discovery directory, invite resolution and token guild listing"
}

// BuildTasks construye un probe por categoría de discovery, uno por
// invite conocido y, con token, uno para las memberships visibles.
func (m *Module) BuildTasks(ctx context.Context, target domain.Target, cfg ports.ModuleConfig) ([]domain.ProbeTask, error) {
	if m.client == nil {
		return nil, fmt.Errorf("servers module requires an HTTP client")
	}

	tasks := make([]domain.ProbeTask, 0, len(m.categories)+len(m.invites)+1)
	for _, c := range m.categories {
		category := c
		tasks = append(tasks, m.task("discovery/"+category, func(ctx context.Context) domain.Outcome {
			return m.probeCategory(ctx, category)
		}))
	}
	for _, i := range m.invites {
		code := i
		tasks = append(tasks, m.task("invite/"+code, func(ctx context.Context) domain.Outcome {
			return m.probeInvite(ctx, code)
		}))
	}
	if m.client.Authenticated() {
		tasks = append(tasks, m.task("memberships", m.probeMemberships))
	}
	return tasks, nil
}

func (m *Module) task(target string, invoke func(ctx context.Context) domain.Outcome) domain.ProbeTask {
	return domain.ProbeTask{
		Source: domain.SourceAPI,
		Module: moduleName,
		Target: target,
		Invoke: invoke,
	}
}

// GuildSummary resume un guild visto en discovery o tras resolver un invite.
type GuildSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     int      `json:"member_count,omitempty"`
	Online      int      `json:"online_count,omitempty"`
	Features    []string `json:"features,omitempty"`
	Locale      string   `json:"locale,omitempty"`
	VanityURL   string   `json:"vanity_url,omitempty"`
}

// CategoryFinding lista los guilds públicos de una categoría del directorio.
type CategoryFinding struct {
	Category   string         `json:"category"`
	Accessible bool           `json:"accessible"`
	Guilds     []GuildSummary `json:"guilds,omitempty"`
}

func (m *Module) probeCategory(ctx context.Context, category string) domain.Outcome {
	endpoint := fmt.Sprintf("%s/discovery/categories/%s/guilds", m.apiBase, url.PathEscape(category))

	body, finding, out := m.fetch(ctx, endpoint, "discovery "+category)
	if out != nil {
		return *out
	}
	if !finding {
		// El directorio puede estar cerrado para clientes sin sesión;
		// esa postura también se reporta.
		return domain.Success(CategoryFinding{Category: category})
	}

	var parsed struct {
		Guilds []struct {
			ID            string   `json:"id"`
			Name          string   `json:"name"`
			Description   string   `json:"description"`
			MemberCount   int      `json:"approximate_member_count"`
			PresenceCount int      `json:"approximate_presence_count"`
			Features      []string `json:"features"`
			Locale        string   `json:"preferred_locale"`
			VanityURL     string   `json:"vanity_url_code"`
		} `json:"guilds"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Permanentf("parsing discovery %s: %v", category, err)
	}

	result := CategoryFinding{Category: category, Accessible: true}
	for _, g := range parsed.Guilds {
		result.Guilds = append(result.Guilds, GuildSummary{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Members:     g.MemberCount,
			Online:      g.PresenceCount,
			Features:    g.Features,
			Locale:      g.Locale,
			VanityURL:   g.VanityURL,
		})
	}

	m.logger.Debug("discovery category walked", "category", category, "guilds", len(result.Guilds))
	return domain.Success(result)
}

// InviteFinding describe el guild detrás de un invite, o su expiración.
type InviteFinding struct {
	Code  string        `json:"code"`
	Valid bool          `json:"valid"`
	Guild *GuildSummary `json:"guild,omitempty"`
}

func (m *Module) probeInvite(ctx context.Context, code string) domain.Outcome {
	endpoint := fmt.Sprintf("%s/invites/%s?with_counts=true", m.apiBase, url.PathEscape(code))

	body, found, out := m.fetch(ctx, endpoint, "invite "+code)
	if out != nil {
		return *out
	}
	if !found {
		// Un invite caducado o revocado también es un dato del run.
		return domain.Success(InviteFinding{Code: code})
	}

	var parsed struct {
		Guild struct {
			ID          string   `json:"id"`
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Features    []string `json:"features"`
			VanityURL   string   `json:"vanity_url_code"`
		} `json:"guild"`
		MemberCount   int `json:"approximate_member_count"`
		PresenceCount int `json:"approximate_presence_count"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Permanentf("parsing invite %s: %v", code, err)
	}

	return domain.Success(InviteFinding{
		Code:  code,
		Valid: true,
		Guild: &GuildSummary{
			ID:          parsed.Guild.ID,
			Name:        parsed.Guild.Name,
			Description: parsed.Guild.Description,
			Members:     parsed.MemberCount,
			Online:      parsed.PresenceCount,
			Features:    parsed.Guild.Features,
			VanityURL:   parsed.Guild.VanityURL,
		},
	})
}

// MembershipFinding lista los guilds visibles para el token configurado.
type MembershipFinding struct {
	Count  int            `json:"count"`
	Guilds []GuildSummary `json:"guilds,omitempty"`
}

func (m *Module) probeMemberships(ctx context.Context) domain.Outcome {
	body, found, out := m.fetch(ctx, m.apiBase+"/users/@me/guilds", "memberships")
	if out != nil {
		return *out
	}
	if !found {
		return domain.Permanent("token cannot list its own guilds")
	}

	var parsed []struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		Features []string `json:"features"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Permanentf("parsing memberships: %v", err)
	}

	result := MembershipFinding{Count: len(parsed)}
	for _, g := range parsed {
		result.Guilds = append(result.Guilds, GuildSummary{ID: g.ID, Name: g.Name, Features: g.Features})
	}
	return domain.Success(result)
}

// fetch trae un JSON y clasifica el status: (body, true, nil) con datos,
// (nil, false, nil) cuando el recurso no existe o exige credenciales, y
// un outcome terminal en el resto de casos.
func (m *Module) fetch(ctx context.Context, endpoint, what string) ([]byte, bool, *domain.Outcome) {
	resp, err := m.client.GetJSON(ctx, endpoint)
	if err != nil {
		out := common.OutcomeFromError(fmt.Errorf("fetching %s: %w", what, err))
		return nil, false, &out
	}
	defer resp.Body.Close()

	if serr := httpclient.CheckStatus(resp); serr != nil {
		switch {
		case errors.IsNotFound(serr) || errors.IsUnauthorized(serr):
			return nil, false, nil
		case errors.IsTransient(serr):
			out := domain.Transientf("fetching %s: %v", what, serr)
			return nil, false, &out
		default:
			out := domain.Permanentf("fetching %s: %v", what, serr)
			return nil, false, &out
		}
	}

	body, err := httpclient.ReadBody(resp)
	if err != nil {
		out := domain.Transientf("reading %s: %v", what, err)
		return nil, false, &out
	}
	return body, true, nil
}

// Close libera recursos del módulo.
func (m *Module) Close() error { return nil }
