package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/rfs85/DicordEnumeration/internal/testutil"
)

func load(t *testing.T, args ...string) Config {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := LoadArgs(fs, args)
	testutil.AssertNoError(t, err, "load config")
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := load(t)

	testutil.AssertEqual(t, cfg.Target, "discord", "default target")
	testutil.AssertEqual(t, cfg.Workers, 4, "default workers")
	testutil.AssertEqual(t, cfg.OutputPath, "discord_enum_results.json", "default output")
	testutil.AssertEqual(t, cfg.Retry.MaxAttempts, 3, "default attempts")
	testutil.AssertEqual(t, cfg.CallTimeout(), 10*time.Second, "default probe timeout")
	testutil.AssertEqual(t, len(cfg.Modules), 5, "all modules enabled by default")

	api, ok := cfg.RateOverrides["rest-api"]
	testutil.AssertTrue(t, ok, "rest-api override present")
	testutil.AssertEqual(t, api.Capacity, 3, "rest-api capacity")
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DISCORDENUM_TARGET", "Example")
	t.Setenv("DISCORDENUM_WORKERS", "8")
	t.Setenv("DISCORDENUM_MODULES", "asn, cdn")
	t.Setenv("DISCORDENUM_QUIET", "yes")
	t.Setenv("DISCORDENUM_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("DISCORDENUM_RATE_REST_API_CAPACITY", "1")

	cfg := load(t)

	testutil.AssertEqual(t, cfg.Target, "example", "target normalized to lowercase")
	testutil.AssertEqual(t, cfg.Workers, 8, "workers from env")
	testutil.AssertEqual(t, len(cfg.Modules), 2, "module list from env")
	testutil.AssertTrue(t, cfg.ModuleEnabled("cdn"), "cdn enabled")
	testutil.AssertFalse(t, cfg.ModuleEnabled("dnsrecon"), "dnsrecon disabled")
	testutil.AssertTrue(t, cfg.Quiet, "quiet from env")
	testutil.AssertEqual(t, cfg.Retry.MaxAttempts, 5, "retry budget from env")
	testutil.AssertEqual(t, cfg.RateOverrides["rest-api"].Capacity, 1, "per-source override from env")
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("DISCORDENUM_WORKERS", "8")
	t.Setenv("DISCORDENUM_OUTPUT", "env.json")

	cfg := load(t, "--workers", "2", "--output", "flag.json", "--retry.max-attempts", "7")

	testutil.AssertEqual(t, cfg.Workers, 2, "flag wins over env")
	testutil.AssertEqual(t, cfg.OutputPath, "flag.json", "flag wins over env")
	testutil.AssertEqual(t, cfg.Retry.MaxAttempts, 7, "dotted flag parsed")
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "discordenum.yaml")
	body := `
target: acme
workers: 6
modules: [dnsrecon, services]
rate:
  capacity: 2
  refill_ms: 2000
rate_overrides:
  dns-resolver:
    capacity: 10
    refill_ms: 500
retry:
  max_attempts: 4
`
	testutil.AssertNoError(t, os.WriteFile(path, []byte(body), 0o644), "write fixture")

	cfg := load(t, "--config", path)

	testutil.AssertEqual(t, cfg.Target, "acme", "target from file")
	testutil.AssertEqual(t, cfg.Workers, 6, "workers from file")
	testutil.AssertEqual(t, len(cfg.Modules), 2, "modules from file")
	testutil.AssertEqual(t, cfg.Rate.Capacity, 2, "default budget from file")
	testutil.AssertEqual(t, cfg.Rate.RefillMS, 2000, "refill from file")
	testutil.AssertEqual(t, cfg.RateOverrides["dns-resolver"].Capacity, 10, "override from file")
	testutil.AssertEqual(t, cfg.Retry.MaxAttempts, 4, "retry from file")
}

func TestLoad_FileThenEnvThenFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	testutil.AssertNoError(t, os.WriteFile(path, []byte("workers: 6\ntarget: fromfile\n"), 0o644), "write fixture")

	t.Setenv("DISCORDENUM_WORKERS", "8")

	cfg := load(t, "--config", path, "--target", "fromflag")

	testutil.AssertEqual(t, cfg.Workers, 8, "env beats file")
	testutil.AssertEqual(t, cfg.Target, "fromflag", "flag beats file")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	_, err := LoadArgs(fs, []string{"--config", "/nonexistent/cfg.yaml"})
	testutil.AssertError(t, err, "missing file is an error")
}

func TestNormalize(t *testing.T) {
	cfg := load(t, "--workers", "0", "--timeout", "0", "--retry.max-attempts", "0", "--retry.base-delay-ms", "0")

	testutil.AssertEqual(t, cfg.Workers, 1, "workers clamped")
	testutil.AssertEqual(t, cfg.TimeoutS, 10, "timeout restored to default")
	testutil.AssertEqual(t, cfg.Retry.MaxAttempts, 1, "attempts clamped")
	testutil.AssertEqual(t, cfg.Retry.BaseDelayMS, 1000, "base delay restored")
	testutil.AssertTrue(t, cfg.Retry.MaxDelayMS >= cfg.Retry.BaseDelayMS, "max delay at least base")
}

func TestNormalize_PartialOverrideInheritsDefaults(t *testing.T) {
	// Un override que sólo fija capacity no debe perder el refill del
	// presupuesto por defecto: sin herencia quedaría sin bucket.
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := `
rate:
  capacity: 2
  refill_ms: 2000
  min_spacing_ms: 100
rate_overrides:
  cdn-endpoint:
    capacity: 5
`
	testutil.AssertNoError(t, os.WriteFile(path, []byte(body), 0o644), "write fixture")

	cfg := load(t, "--config", path)

	override := cfg.RateOverrides["cdn-endpoint"]
	testutil.AssertEqual(t, override.Capacity, 5, "explicit field kept")
	testutil.AssertEqual(t, override.RefillMS, 2000, "refill inherited from default budget")
}

func TestToJSON_MasksToken(t *testing.T) {
	cfg := load(t, "--token", "supersecret")
	out, err := cfg.ToJSON()
	testutil.AssertNoError(t, err, "to json")
	testutil.AssertFalse(t, testutil.ContainsStr(out, "supersecret"), "token not leaked")
	testutil.AssertContains(t, out, "***", "token masked")
}
