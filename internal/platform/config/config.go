// internal/platform/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Precedencia de configuración: defaults -> fichero YAML -> ENV -> flags.
type Config struct {
	// App
	Target       string   `yaml:"target"`
	Token        string   `yaml:"token"`
	Modules      []string `yaml:"modules"`
	Workers      int      `yaml:"workers"`
	TimeoutS     int      `yaml:"timeout"` // timeout por probe, en segundos
	PrintVersion bool     `yaml:"-"`
	Quiet        bool     `yaml:"quiet"`

	// IO
	OutputPath string `yaml:"output"`
	ConfigFile string `yaml:"-"`

	// Rate: presupuesto por defecto más overrides por source.
	// Key = source id (ej: "rest-api", "dns-resolver")
	Rate          RateBudget            `yaml:"rate"`
	RateOverrides map[string]RateBudget `yaml:"rate_overrides"`

	// Retry
	Retry Retry `yaml:"retry"`
}

// RateBudget describe el token bucket de una source.
type RateBudget struct {
	Capacity     int `yaml:"capacity"`
	RefillMS     int `yaml:"refill_ms"`
	MinSpacingMS int `yaml:"min_spacing_ms"`
}

// Retry describe el presupuesto de reintentos compartido por todos los módulos.
type Retry struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// DefaultConfig retorna una configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Target:   "discord",
		Token:    "",
		Modules:  []string{"asn", "dnsrecon", "services", "cdn", "servers"},
		Workers:  4,
		TimeoutS: 10,

		OutputPath: "discord_enum_results.json",

		Rate: RateBudget{
			Capacity:     5,
			RefillMS:     1000,
			MinSpacingMS: 100,
		},
		RateOverrides: map[string]RateBudget{
			// La API pública tolera menos presión que el CDN.
			"rest-api": {Capacity: 3, RefillMS: 1000, MinSpacingMS: 250},
		},

		Retry: Retry{
			MaxAttempts: 3,
			BaseDelayMS: 1000,
			MaxDelayMS:  30000,
		},
	}
}

// Load inicializa la configuración desde os.Args con el FlagSet global.
func Load() (Config, error) {
	return LoadArgs(pflag.NewFlagSet("discordenum", pflag.ContinueOnError), os.Args[1:])
}

// LoadArgs aplica la cadena completa de precedencia sobre args.
// Recibe el FlagSet para que los tests no compartan estado global.
func LoadArgs(fs *pflag.FlagSet, args []string) (Config, error) {
	cfg := DefaultConfig()

	// El fichero se localiza antes de parsear el resto: un pre-scan barato
	// evita doble parse del FlagSet.
	if path := configFileFrom(args); path != "" {
		cfg.ConfigFile = path
		if err := loadFromFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	loadFromEnv(&cfg)

	if err := loadFromFlags(&cfg, fs, args); err != nil {
		return cfg, err
	}

	normalize(&cfg)
	return cfg, nil
}

// configFileFrom extrae el valor de --config/-c sin parsear el FlagSet.
func configFileFrom(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config" || a == "-c":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return os.Getenv("DISCORDENUM_CONFIG")
}

// loadFromFile mezcla un YAML sobre la config actual.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv carga configuración desde variables de entorno.
func loadFromEnv(cfg *Config) {
	if v := getenv("DISCORDENUM_TARGET", ""); v != "" {
		cfg.Target = v
	}
	if v := getenv("DISCORDENUM_TOKEN", ""); v != "" {
		cfg.Token = v
	}
	if v := getenv("DISCORDENUM_MODULES", ""); v != "" {
		cfg.Modules = splitList(v)
	}
	if v := getenv("DISCORDENUM_WORKERS", ""); v != "" {
		cfg.Workers = parseInt(v, cfg.Workers)
	}
	if v := getenv("DISCORDENUM_TIMEOUT", ""); v != "" {
		cfg.TimeoutS = parseInt(v, cfg.TimeoutS)
	}
	if v := getenv("DISCORDENUM_OUTPUT", ""); v != "" {
		cfg.OutputPath = v
	}
	if v := getenv("DISCORDENUM_QUIET", ""); v != "" {
		cfg.Quiet = parseBool(v)
	}

	// Rate por defecto
	if v := getenv("DISCORDENUM_RATE_CAPACITY", ""); v != "" {
		cfg.Rate.Capacity = parseInt(v, cfg.Rate.Capacity)
	}
	if v := getenv("DISCORDENUM_RATE_REFILL_MS", ""); v != "" {
		cfg.Rate.RefillMS = parseInt(v, cfg.Rate.RefillMS)
	}
	if v := getenv("DISCORDENUM_RATE_MIN_SPACING_MS", ""); v != "" {
		cfg.Rate.MinSpacingMS = parseInt(v, cfg.Rate.MinSpacingMS)
	}

	// Overrides por source
	// Formato: DISCORDENUM_RATE_REST_API_CAPACITY=3
	//          DISCORDENUM_RATE_DNS_RESOLVER_REFILL_MS=500
	for name := range cfg.RateOverrides {
		prefix := fmt.Sprintf("DISCORDENUM_RATE_%s_", envKey(name))
		override := cfg.RateOverrides[name]

		if v := getenv(prefix+"CAPACITY", ""); v != "" {
			override.Capacity = parseInt(v, override.Capacity)
		}
		if v := getenv(prefix+"REFILL_MS", ""); v != "" {
			override.RefillMS = parseInt(v, override.RefillMS)
		}
		if v := getenv(prefix+"MIN_SPACING_MS", ""); v != "" {
			override.MinSpacingMS = parseInt(v, override.MinSpacingMS)
		}
		cfg.RateOverrides[name] = override
	}

	// Retry
	if v := getenv("DISCORDENUM_RETRY_MAX_ATTEMPTS", ""); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}
	if v := getenv("DISCORDENUM_RETRY_BASE_DELAY_MS", ""); v != "" {
		cfg.Retry.BaseDelayMS = parseInt(v, cfg.Retry.BaseDelayMS)
	}
	if v := getenv("DISCORDENUM_RETRY_MAX_DELAY_MS", ""); v != "" {
		cfg.Retry.MaxDelayMS = parseInt(v, cfg.Retry.MaxDelayMS)
	}
}

// loadFromFlags parsea flags de CLI sobre la config ya cargada.
func loadFromFlags(cfg *Config, fs *pflag.FlagSet, args []string) error {
	fs.StringVarP(&cfg.Target, "target", "t", cfg.Target, "Organización objetivo")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Token de autenticación (habilita probes autenticados)")
	fs.StringSliceVarP(&cfg.Modules, "modules", "m", cfg.Modules, "Módulos a ejecutar")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Concurrencia del worker pool")
	fs.IntVar(&cfg.TimeoutS, "timeout", cfg.TimeoutS, "Timeout por probe en segundos")

	fs.StringVarP(&cfg.OutputPath, "output", "o", cfg.OutputPath, "Fichero de salida JSON")
	fs.StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "Fichero de configuración YAML")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "Suprimir salida de progreso")
	fs.BoolVar(&cfg.PrintVersion, "version", false, "Imprimir versión y salir")

	fs.IntVar(&cfg.Rate.Capacity, "rate.capacity", cfg.Rate.Capacity, "Tokens por burst por source")
	fs.IntVar(&cfg.Rate.RefillMS, "rate.refill-ms", cfg.Rate.RefillMS, "Intervalo de refill del bucket en ms")
	fs.IntVar(&cfg.Rate.MinSpacingMS, "rate.min-spacing-ms", cfg.Rate.MinSpacingMS, "Separación mínima entre requests en ms")

	fs.IntVar(&cfg.Retry.MaxAttempts, "retry.max-attempts", cfg.Retry.MaxAttempts, "Invocaciones máximas por probe")
	fs.IntVar(&cfg.Retry.BaseDelayMS, "retry.base-delay-ms", cfg.Retry.BaseDelayMS, "Delay base de backoff en ms")
	fs.IntVar(&cfg.Retry.MaxDelayMS, "retry.max-delay-ms", cfg.Retry.MaxDelayMS, "Delay máximo de backoff en ms")

	return fs.Parse(args)
}

func normalize(c *Config) {
	c.Target = strings.TrimSpace(strings.ToLower(c.Target))
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.TimeoutS < 1 {
		c.TimeoutS = 10
	}
	if c.OutputPath == "" {
		c.OutputPath = "discord_enum_results.json"
	}
	if len(c.Modules) == 0 {
		c.Modules = DefaultConfig().Modules
	}
	for i, m := range c.Modules {
		c.Modules[i] = strings.TrimSpace(strings.ToLower(m))
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.BaseDelayMS < 1 {
		c.Retry.BaseDelayMS = 1000
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		c.Retry.MaxDelayMS = c.Retry.BaseDelayMS
	}
	if c.Rate.Capacity < 1 {
		c.Rate.Capacity = 1
	}
	if c.Rate.RefillMS < 1 {
		c.Rate.RefillMS = 1000
	}
	if c.Rate.MinSpacingMS < 0 {
		c.Rate.MinSpacingMS = 0
	}
	// Los overrides por source heredan del presupuesto por defecto los
	// campos que el YAML no especifica; así un override parcial nunca
	// deshabilita el bucket de esa source.
	for source, b := range c.RateOverrides {
		if b.Capacity < 1 {
			b.Capacity = c.Rate.Capacity
		}
		if b.RefillMS < 1 {
			b.RefillMS = c.Rate.RefillMS
		}
		if b.MinSpacingMS < 0 {
			b.MinSpacingMS = c.Rate.MinSpacingMS
		}
		c.RateOverrides[source] = b
	}
}

// ModuleEnabled indica si un módulo está en la lista activa.
func (c Config) ModuleEnabled(name string) bool {
	for _, m := range c.Modules {
		if m == name {
			return true
		}
	}
	return false
}

// CallTimeout devuelve el timeout por probe como duración.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}

// ToJSON serializa la configuración a JSON (útil para debugging).
// El token se enmascara.
func (c Config) ToJSON() (string, error) {
	masked := c
	if masked.Token != "" {
		masked.Token = "***"
	}
	data, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Helpers

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(v string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envKey(source string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(source))
}
