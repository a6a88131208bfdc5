// Package dnsrecon implements the dns-resolver module: record collection,
// mail security posture, zone transfer checks and a subdomain sweep over
// the platform's core domains.
package dnsrecon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
	"github.com/rfs85/DicordEnumeration/internal/modules/common"
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
			Description: "DNS records, mail security, zone transfer and subdomain sweep",
			Source:      domain.SourceDNS,
		},
	); err != nil {
		logx.New().Warn("failed to register dnsrecon module", "error", err.Error())
	}
}

const moduleName = domain.ModuleID("dnsrecon")

// defaultSubdomains es la wordlist corta del sweep. Cubre los hosts que
// la plataforma expone históricamente, no es un diccionario de fuerza bruta.
var defaultSubdomains = []string{
	"www", "api", "cdn", "gateway", "status", "media", "support",
	"feedback", "blog", "mail", "admin", "portal", "updates", "canary", "ptb",
}

var recordTypes = map[string]uint16{
	"A":     dns.TypeA,
	"AAAA":  dns.TypeAAAA,
	"MX":    dns.TypeMX,
	"NS":    dns.TypeNS,
	"TXT":   dns.TypeTXT,
	"CNAME": dns.TypeCNAME,
	"SOA":   dns.TypeSOA,
}

// Module implementa ports.Module sobre un resolver DNS explícito.
type Module struct {
	client   *dns.Client
	resolver string
	logger   logx.Logger

	domains    []string
	subdomains []string

	// Seams para tests: se sobreescriben para responder sin red.
	exchange func(ctx context.Context, msg *dns.Msg) (*dns.Msg, error)
	transfer func(ctx context.Context, zone, nameserver string) ([]dns.RR, error)
}

// New crea el módulo con sus dependencias compartidas.
func New(cfg ports.ModuleConfig, deps registry.Deps) *Module {
	client := &dns.Client{Timeout: 5 * time.Second}

	m := &Module{
		client:     client,
		resolver:   registry.GetStringConfig(cfg.Custom, "resolver", "1.1.1.1:53"),
		logger:     deps.Logger.With("module", "dnsrecon"),
		domains:    registry.GetSliceConfig(cfg.Custom, "domains", common.CoreDomains[:4]),
		subdomains: registry.GetSliceConfig(cfg.Custom, "subdomains", defaultSubdomains),
	}
	m.exchange = func(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
		resp, _, err := m.client.ExchangeContext(ctx, msg, m.resolver)
		return resp, err
	}
	m.transfer = func(ctx context.Context, zone, nameserver string) ([]dns.RR, error) {
		t := &dns.Transfer{}
		msg := new(dns.Msg)
		msg.SetAxfr(dns.Fqdn(zone))

		env, err := t.In(msg, nameserver)
		if err != nil {
			return nil, err
		}
		var records []dns.RR
		for e := range env {
			if e.Error != nil {
				return nil, e.Error
			}
			records = append(records, e.RR...)
		}
		return records, nil
	}
	return m
}

// Name retorna el identificador del módulo.
func (m *Module) Name() domain.ModuleID { return moduleName }

// Description retorna una descripción corta.
func (m *Module) Description() string {
	return "DNS records, mail security, zone transfer and subdomain sweep"
}

// BuildTasks construye cuatro probes por dominio del catálogo.
func (m *Module) BuildTasks(ctx context.Context, target domain.Target, cfg ports.ModuleConfig) ([]domain.ProbeTask, error) {
	if len(m.domains) == 0 {
		return nil, fmt.Errorf("no domains configured")
	}

	tasks := make([]domain.ProbeTask, 0, len(m.domains)*4)
	for _, d := range m.domains {
		zone := d
		tasks = append(tasks,
			m.task(zone+"/records", func(ctx context.Context) domain.Outcome {
				return m.probeRecords(ctx, zone)
			}),
			m.task(zone+"/mail-security", func(ctx context.Context) domain.Outcome {
				return m.probeMailSecurity(ctx, zone)
			}),
			m.task(zone+"/axfr", func(ctx context.Context) domain.Outcome {
				return m.probeZoneTransfer(ctx, zone)
			}),
			m.task(zone+"/subdomains", func(ctx context.Context) domain.Outcome {
				return m.probeSubdomains(ctx, zone)
			}),
		)
	}
	return tasks, nil
}

func (m *Module) task(target string, invoke func(ctx context.Context) domain.Outcome) domain.ProbeTask {
	return domain.ProbeTask{
		Source: domain.SourceDNS,
		Module: moduleName,
		Target: target,
		Invoke: invoke,
	}
}

// RecordSet agrupa los registros de un dominio por tipo.
type RecordSet struct {
	Domain  string              `json:"domain"`
	Records map[string][]string `json:"records"`
}

func (m *Module) probeRecords(ctx context.Context, zone string) domain.Outcome {
	set := RecordSet{Domain: zone, Records: make(map[string][]string)}

	for name, qtype := range recordTypes {
		answers, out := m.query(ctx, zone, qtype)
		if out != nil {
			return *out
		}
		if len(answers) > 0 {
			set.Records[name] = answers
		}
	}

	m.logger.Debug("record collection finished", "domain", zone, "types", len(set.Records))
	return domain.Success(set)
}

// MailSecurity describe la postura SPF/DMARC de un dominio.
type MailSecurity struct {
	Domain   string `json:"domain"`
	SPF      string `json:"spf,omitempty"`
	DMARC    string `json:"dmarc,omitempty"`
	HasSPF   bool   `json:"has_spf"`
	HasDMARC bool   `json:"has_dmarc"`
}

func (m *Module) probeMailSecurity(ctx context.Context, zone string) domain.Outcome {
	sec := MailSecurity{Domain: zone}

	txts, out := m.query(ctx, zone, dns.TypeTXT)
	if out != nil {
		return *out
	}
	sec.SPF = FindSPF(txts)
	sec.HasSPF = sec.SPF != ""

	dmarcTxts, out := m.query(ctx, "_dmarc."+zone, dns.TypeTXT)
	if out != nil {
		return *out
	}
	sec.DMARC = FindDMARC(dmarcTxts)
	sec.HasDMARC = sec.DMARC != ""

	return domain.Success(sec)
}

// TransferResult describe el intento de AXFR contra cada nameserver.
type TransferResult struct {
	Domain      string            `json:"domain"`
	Nameservers map[string]string `json:"nameservers"`
	Leaked      int               `json:"leaked_records"`
}

func (m *Module) probeZoneTransfer(ctx context.Context, zone string) domain.Outcome {
	nsNames, out := m.query(ctx, zone, dns.TypeNS)
	if out != nil {
		return *out
	}
	if len(nsNames) == 0 {
		return domain.Permanentf("%s exposes no nameservers", zone)
	}

	result := TransferResult{Domain: zone, Nameservers: make(map[string]string)}
	for _, ns := range nsNames {
		addr := strings.TrimSuffix(ns, ".") + ":53"
		records, err := m.transfer(ctx, zone, addr)
		if err != nil {
			// El rechazo es el resultado esperado: la zona está protegida.
			result.Nameservers[ns] = "refused"
			continue
		}
		result.Nameservers[ns] = fmt.Sprintf("transferred %d records", len(records))
		result.Leaked += len(records)
	}
	return domain.Success(result)
}

// SweepResult lista los subdominios del barrido que resuelven.
type SweepResult struct {
	Domain string              `json:"domain"`
	Found  map[string][]string `json:"found"`
}

func (m *Module) probeSubdomains(ctx context.Context, zone string) domain.Outcome {
	result := SweepResult{Domain: zone, Found: make(map[string][]string)}

	for _, sub := range m.subdomains {
		fqdn := sub + "." + zone
		answers, out := m.queryAllowAbsent(ctx, fqdn, dns.TypeA)
		if out != nil {
			return *out
		}
		if len(answers) > 0 {
			result.Found[fqdn] = answers
		}
	}

	m.logger.Debug("subdomain sweep finished", "domain", zone, "found", len(result.Found))
	return domain.Success(result)
}

// query ejecuta una consulta y convierte fallos en outcomes. Un rcode
// NXDOMAIN sobre el propio dominio es terminal; SERVFAIL y errores de
// red son transitorios.
func (m *Module) query(ctx context.Context, name string, qtype uint16) ([]string, *domain.Outcome) {
	answers, rcode, err := m.lookup(ctx, name, qtype)
	if err != nil {
		out := domain.Transientf("querying %s: %v", name, err)
		return nil, &out
	}
	switch rcode {
	case dns.RcodeSuccess:
		return answers, nil
	case dns.RcodeNameError:
		// _dmarc y similares pueden no existir; eso es una respuesta, no un fallo.
		if strings.HasPrefix(name, "_") {
			return nil, nil
		}
		out := domain.Permanentf("%s does not exist (NXDOMAIN)", name)
		return nil, &out
	case dns.RcodeServerFailure:
		out := domain.Transientf("resolver SERVFAIL for %s", name)
		return nil, &out
	default:
		out := domain.Permanentf("resolver answered %s for %s", dns.RcodeToString[rcode], name)
		return nil, &out
	}
}

// queryAllowAbsent trata NXDOMAIN como respuesta vacía (para el sweep).
func (m *Module) queryAllowAbsent(ctx context.Context, name string, qtype uint16) ([]string, *domain.Outcome) {
	answers, rcode, err := m.lookup(ctx, name, qtype)
	if err != nil {
		out := domain.Transientf("querying %s: %v", name, err)
		return nil, &out
	}
	switch rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
		return answers, nil
	case dns.RcodeServerFailure:
		out := domain.Transientf("resolver SERVFAIL for %s", name)
		return nil, &out
	default:
		return nil, nil
	}
}

func (m *Module) lookup(ctx context.Context, name string, qtype uint16) ([]string, int, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	resp, err := m.exchange(ctx, msg)
	if err != nil {
		return nil, 0, err
	}
	if resp == nil {
		return nil, 0, fmt.Errorf("empty response for %s", name)
	}

	answers := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if v := RecordValue(rr); v != "" {
			answers = append(answers, v)
		}
	}
	return answers, resp.Rcode, nil
}

// RecordValue extrae la parte útil de un RR para el reporte.
func RecordValue(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.A:
		return v.A.String()
	case *dns.AAAA:
		return v.AAAA.String()
	case *dns.MX:
		return fmt.Sprintf("%d %s", v.Preference, strings.TrimSuffix(v.Mx, "."))
	case *dns.NS:
		return v.Ns
	case *dns.TXT:
		return strings.Join(v.Txt, "")
	case *dns.CNAME:
		return strings.TrimSuffix(v.Target, ".")
	case *dns.SOA:
		return fmt.Sprintf("%s %s %d", strings.TrimSuffix(v.Ns, "."), strings.TrimSuffix(v.Mbox, "."), v.Serial)
	default:
		return ""
	}
}

// FindSPF localiza el registro SPF entre los TXT de un dominio.
func FindSPF(txts []string) string {
	for _, txt := range txts {
		if strings.HasPrefix(strings.TrimSpace(txt), "v=spf1") {
			return txt
		}
	}
	return ""
}

// FindDMARC localiza la política DMARC entre los TXT de _dmarc.<domain>.
func FindDMARC(txts []string) string {
	for _, txt := range txts {
		if strings.HasPrefix(strings.TrimSpace(txt), "v=DMARC1") {
			return txt
		}
	}
	return ""
}

// Close libera recursos del módulo.
func (m *Module) Close() error { return nil }
