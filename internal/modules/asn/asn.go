// Package asn implements the network-registry module: it resolves the
// platform's core domains and maps the resulting addresses to their
// autonomous systems via RDAP and BGPView lookups.
package asn

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
	"github.com/rfs85/DicordEnumeration/internal/modules/common"
	"github.com/rfs85/DicordEnumeration/internal/platform/cache"
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
			Description: "ASN and network block discovery via RDAP and BGPView",
			Source:      domain.SourceRegistry,
		},
	); err != nil {
		logx.New().Warn("failed to register asn module", "error", err.Error())
	}
}

const (
	moduleName = domain.ModuleID("asn")

	// Los datos de registro cambian raramente; un TTL largo evita gastar
	// presupuesto de rate en direcciones repetidas del mismo bloque.
	cacheTTL = 24 * time.Hour
)

// Module implementa ports.Module para el descubrimiento de ASN.
type Module struct {
	client *httpclient.Client
	cache  *cache.MemoryCache
	logger logx.Logger

	domains     []string
	rdapBase    string
	bgpviewBase string

	// lookupIP se sobreescribe en tests para evitar resolución real.
	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
}

// New crea el módulo con sus dependencias compartidas.
func New(cfg ports.ModuleConfig, deps registry.Deps) *Module {
	resolver := &net.Resolver{}
	mc := deps.Cache
	if mc == nil {
		mc = cache.NewMemoryCache(64)
	}

	return &Module{
		client:      deps.HTTP,
		cache:       mc,
		logger:      deps.Logger.With("module", "asn"),
		domains:     registry.GetSliceConfig(cfg.Custom, "domains", common.CoreDomains),
		rdapBase:    registry.GetStringConfig(cfg.Custom, "rdap_base", "https://rdap.org"),
		bgpviewBase: registry.GetStringConfig(cfg.Custom, "bgpview_base", "https://api.bgpview.io"),
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			addrs, err := resolver.LookupIP(ctx, "ip4", host)
			if err != nil {
				return nil, err
			}
			return addrs, nil
		},
	}
}

// Name retorna el identificador del módulo.
func (m *Module) Name() domain.ModuleID { return moduleName }

// Description retorna una descripción corta.
func (m *Module) Description() string {
	return "ASN and network block discovery via RDAP and BGPView"
}

// BuildTasks construye un probe por dominio del catálogo.
func (m *Module) BuildTasks(ctx context.Context, target domain.Target, cfg ports.ModuleConfig) ([]domain.ProbeTask, error) {
	if len(m.domains) == 0 {
		return nil, fmt.Errorf("no domains configured")
	}

	tasks := make([]domain.ProbeTask, 0, len(m.domains))
	for _, d := range m.domains {
		host := d
		tasks = append(tasks, domain.ProbeTask{
			Source: domain.SourceRegistry,
			Module: moduleName,
			Target: host,
			Invoke: func(ctx context.Context) domain.Outcome {
				return m.probe(ctx, host)
			},
		})
	}
	return tasks, nil
}

// Finding es el payload de un probe de ASN.
type Finding struct {
	Domain           string   `json:"domain"`
	RegisteredDomain string   `json:"registered_domain,omitempty"`
	Addresses        []string `json:"addresses"`
	Network          *Network `json:"network,omitempty"`
	Origins          []Origin `json:"origins,omitempty"`
	LookupErrors     []string `json:"lookup_errors,omitempty"`
}

// Network describe el bloque registrado en RDAP.
type Network struct {
	Handle  string `json:"handle,omitempty"`
	Name    string `json:"name,omitempty"`
	Start   string `json:"start_address,omitempty"`
	End     string `json:"end_address,omitempty"`
	Country string `json:"country,omitempty"`
}

// Origin describe un ASN anunciando la dirección según BGPView.
type Origin struct {
	ASN         int    `json:"asn"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
}

// probe resuelve el dominio y consulta los registros para su primera IP.
// Un fallo de registro con resolución exitosa no tumba el probe: el
// finding lleva las direcciones junto con los errores de lookup.
func (m *Module) probe(ctx context.Context, host string) domain.Outcome {
	addrs, err := m.lookupIP(ctx, host)
	if err != nil {
		return common.OutcomeFromError(classifyLookupError(host, err))
	}
	if len(addrs) == 0 {
		return domain.Permanentf("%s resolved to no addresses", host)
	}

	finding := Finding{
		Domain:    host,
		Addresses: make([]string, 0, len(addrs)),
	}
	for _, a := range addrs {
		finding.Addresses = append(finding.Addresses, a.String())
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		finding.RegisteredDomain = etld1
	}

	ip := finding.Addresses[0]

	network, err := m.rdapNetwork(ctx, ip)
	if err != nil {
		if errors.IsTransient(err) {
			return domain.Transient(err.Error())
		}
		finding.LookupErrors = append(finding.LookupErrors, err.Error())
	} else {
		finding.Network = network
	}

	origins, err := m.bgpviewOrigins(ctx, ip)
	if err != nil {
		if errors.IsTransient(err) {
			return domain.Transient(err.Error())
		}
		finding.LookupErrors = append(finding.LookupErrors, err.Error())
	} else {
		finding.Origins = origins
	}

	m.logger.Debug("asn probe finished",
		"domain", host,
		"addresses", len(finding.Addresses),
		"origins", len(finding.Origins),
	)
	return domain.Success(finding)
}

// rdapResponse es la respuesta de RDAP para un bloque IP (simplificada).
type rdapResponse struct {
	Handle       string `json:"handle"`
	Name         string `json:"name"`
	StartAddress string `json:"startAddress"`
	EndAddress   string `json:"endAddress"`
	Country      string `json:"country"`
}

func (m *Module) rdapNetwork(ctx context.Context, ip string) (*Network, error) {
	key := "rdap:" + ip
	v, err := m.cache.Fetch(key, cacheTTL, func() (interface{}, error) {
		return m.client.FetchJSON(ctx, fmt.Sprintf("%s/ip/%s", m.rdapBase, ip))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "rdap lookup for %s", ip)
	}

	var parsed rdapResponse
	if err := json.Unmarshal(v.([]byte), &parsed); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidResponse, "rdap body for %s: %v", ip, err)
	}

	return &Network{
		Handle:  parsed.Handle,
		Name:    parsed.Name,
		Start:   parsed.StartAddress,
		End:     parsed.EndAddress,
		Country: parsed.Country,
	}, nil
}

// bgpviewResponse es la respuesta de BGPView para una IP (simplificada).
type bgpviewResponse struct {
	Status string `json:"status"`
	Data   struct {
		Prefixes []struct {
			Prefix string `json:"prefix"`
			ASN    struct {
				ASN         int    `json:"asn"`
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"asn"`
		} `json:"prefixes"`
	} `json:"data"`
}

func (m *Module) bgpviewOrigins(ctx context.Context, ip string) ([]Origin, error) {
	key := "bgpview:" + ip
	v, err := m.cache.Fetch(key, cacheTTL, func() (interface{}, error) {
		return m.client.FetchJSON(ctx, fmt.Sprintf("%s/ip/%s", m.bgpviewBase, ip))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bgpview lookup for %s", ip)
	}

	var parsed bgpviewResponse
	if err := json.Unmarshal(v.([]byte), &parsed); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidResponse, "bgpview body for %s: %v", ip, err)
	}

	origins := make([]Origin, 0, len(parsed.Data.Prefixes))
	for _, p := range parsed.Data.Prefixes {
		origins = append(origins, Origin{
			ASN:         p.ASN.ASN,
			Name:        p.ASN.Name,
			Description: p.ASN.Description,
			Prefix:      p.Prefix,
		})
	}
	return origins, nil
}

// classifyLookupError mapea errores de resolución a la taxonomía.
func classifyLookupError(host string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return errors.Wrapf(errors.ErrTimeout, "resolving %s: %v", host, err)
		}
		if dnsErr.IsNotFound {
			return errors.Wrapf(errors.ErrNotFound, "resolving %s: %v", host, err)
		}
	}
	return errors.Wrapf(errors.ErrConnectionFailed, "resolving %s: %v", host, err)
}

// Close libera recursos del módulo.
func (m *Module) Close() error { return nil }
