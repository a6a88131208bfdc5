package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/testutil"
)

func sampleReport() *domain.Report {
	report := domain.NewReport(domain.NewTarget("discord", domain.ModeUnauth))
	report.Modules["dnsrecon"] = &domain.ModuleReport{
		Results: []domain.ProbeResult{
			{Source: domain.SourceDNS, Target: "discord.com", Status: domain.StatusSuccess, Attempts: 1},
			{Source: domain.SourceDNS, Target: "discord.gg", Status: domain.StatusPermanent, Reason: "nxdomain", Attempts: 3},
		},
		FailureCount: 1,
	}
	return report
}

func TestJSONWriter_Write(t *testing.T) {
	t.Run("writes indented report", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")
		w := NewJSONWriter(path)

		testutil.AssertNoError(t, w.Write(sampleReport()), "write")

		data, err := os.ReadFile(path)
		testutil.AssertNoError(t, err, "read back")

		var decoded domain.Report
		testutil.AssertNoError(t, json.Unmarshal(data, &decoded), "valid JSON")
		testutil.AssertEqual(t, decoded.Target, "discord", "target round-trips")
		testutil.AssertEqual(t, len(decoded.Modules["dnsrecon"].Results), 2, "results round-trip")
		testutil.AssertEqual(t, decoded.Modules["dnsrecon"].Results[1].Status, domain.StatusPermanent, "status round-trips")
		testutil.AssertContains(t, string(data), "\n  ", "output is indented")
	})

	t.Run("creates missing directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "out.json")
		w := NewJSONWriter(path)

		testutil.AssertNoError(t, w.Write(sampleReport()), "write into nested dir")
		_, err := os.Stat(path)
		testutil.AssertNoError(t, err, "file exists")
	})

	t.Run("replaces previous report atomically", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")
		w := NewJSONWriter(path)

		testutil.AssertNoError(t, w.Write(sampleReport()), "first write")
		testutil.AssertNoError(t, w.Write(sampleReport()), "second write")

		entries, err := os.ReadDir(filepath.Dir(path))
		testutil.AssertNoError(t, err, "list dir")
		testutil.AssertEqual(t, len(entries), 1, "no temp files left behind")
	})

	t.Run("rejects nil report", func(t *testing.T) {
		w := NewJSONWriter(filepath.Join(t.TempDir(), "out.json"))
		testutil.AssertError(t, w.Write(nil), "nil report")
	})

	t.Run("defaults the output path", func(t *testing.T) {
		w := NewJSONWriter("")
		testutil.AssertEqual(t, w.Path(), "discord_enum_results.json", "default path")
	})
}

func TestOutputTable(t *testing.T) {
	var buf bytes.Buffer
	report := sampleReport()
	report.Modules["servers"] = &domain.ModuleReport{SetupError: "invite catalog unavailable", FailureCount: 1}

	testutil.AssertNoError(t, OutputTable(&buf, report), "render table")

	out := buf.String()
	testutil.AssertContains(t, out, "Discord Enumeration Results", "header")
	testutil.AssertContains(t, out, "dnsrecon", "module row")
	testutil.AssertContains(t, out, "invite catalog unavailable", "setup error surfaced")
	testutil.AssertContains(t, out, "nxdomain", "failure reason listed")
	testutil.AssertContains(t, out, report.RunID, "run id shown")
}
