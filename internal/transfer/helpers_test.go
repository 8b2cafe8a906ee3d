package transfer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/olegiv/ocms-l10n/internal/l10n"
	"github.com/olegiv/ocms-l10n/internal/model"
	"github.com/olegiv/ocms-l10n/internal/record"
	"github.com/olegiv/ocms-l10n/internal/schema"
	"github.com/olegiv/ocms-l10n/internal/site"
	"github.com/olegiv/ocms-l10n/internal/testutil"
	"github.com/olegiv/ocms-l10n/internal/testutil/fixture"
)

// testSetup contains common test dependencies.
type testSetup struct {
	Ctx      context.Context
	Store    record.Store
	Reg      *schema.Registry
	Site     *site.Site
	Engine   *l10n.Engine
	Exporter *Exporter
	Importer *Importer
}

// setupTest creates a SQLite backed store with the default schema and site.
func setupTest(t *testing.T) *testSetup {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.TestLoggerSilent()
	reg := schema.Default()
	s := site.Default()
	st := record.NewSQLStore(db, reg, logger)
	engine := l10n.NewEngine(st, reg, nil, s, logger)

	return &testSetup{
		Ctx:      context.Background(),
		Store:    st,
		Reg:      reg,
		Site:     s,
		Engine:   engine,
		Exporter: NewExporter(st, reg, s, logger),
		Importer: NewImporter(st, reg, engine, s, logger),
	}
}

// configuration stores a tx_l10nmgr_cfg record on page and loads it.
func (s *testSetup) configuration(t *testing.T, page int64, depth, tables, exclude string) *Configuration {
	t.Helper()

	uid := fixture.Insert(t, s.Store, &model.Record{
		Table: schema.TableL10nCfg,
		PID:   page,
		Fields: map[string]string{
			"title":     "Example export",
			"depth":     depth,
			"tablelist": tables,
			"exclude":   exclude,
		},
	})
	cfg, err := LoadConfiguration(s.Ctx, s.Store, s.Reg, uid)
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	return cfg
}

// exportXML exports cfg into German.
func (s *testSetup) exportXML(t *testing.T, cfg *Configuration) string {
	t.Helper()

	var buf bytes.Buffer
	if err := s.Exporter.ExportToWriter(s.Ctx, cfg, 1, &buf); err != nil {
		t.Fatalf("ExportToWriter: %v", err)
	}
	return buf.String()
}

// importXML imports a German document and fails on any element error.
func (s *testSetup) importXML(t *testing.T, xml string, opts ImportOptions) *ImportResult {
	t.Helper()

	result, err := s.Importer.ImportFromReader(s.Ctx, strings.NewReader(xml), 1, opts)
	if err != nil {
		t.Fatalf("ImportFromReader: %v", err)
	}
	if !result.Success {
		t.Fatalf("import failed: %v", result.Err())
	}
	return result
}

// translation returns the German translation of a record, or 0.
func (s *testSetup) translation(t *testing.T, k model.Key) int64 {
	t.Helper()

	uid, found, err := s.Store.FindLocalization(s.Ctx, k.Table, k.UID, 1)
	if err != nil {
		t.Fatalf("FindLocalization(%s): %v", k, err)
	}
	if !found {
		return 0
	}
	return uid
}

func (s *testSetup) get(t *testing.T, table string, uid int64) *model.Record {
	t.Helper()

	rec, err := s.Store.Get(s.Ctx, table, uid)
	if err != nil {
		t.Fatalf("Get(%s:%d): %v", table, uid, err)
	}
	return rec
}

// dropLines removes every line containing one of the given substrings.
func dropLines(xml string, substrs ...string) string {
	lines := strings.Split(xml, "\n")
	out := lines[:0]
	for _, line := range lines {
		drop := false
		for _, s := range substrs {
			if strings.Contains(line, s) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// keepLines keeps the data lines containing one of the given substrings
// and every line that is not a data line.
func keepLines(xml string, substrs ...string) string {
	lines := strings.Split(xml, "\n")
	out := lines[:0]
	for _, line := range lines {
		keep := !strings.Contains(line, "<data ")
		for _, s := range substrs {
			if strings.Contains(line, s) {
				keep = true
				break
			}
		}
		if keep {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
