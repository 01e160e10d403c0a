package replay

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cascade"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/corpus"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/index"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// #region fixture-tests

func seededResolver(t *testing.T) *cascade.Resolver {
	t.Helper()
	cat := catalog.MustDefault()
	enc := encoder.New(cat, encoder.DefaultConfig())
	presets, err := corpus.Default(cat, 6)
	if err != nil {
		t.Fatalf("corpus.Default: %v", err)
	}
	idx := index.New(enc.Dim())
	if err := idx.AddAll(corpus.Items(presets, enc)); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	r, err := cascade.New(cascade.DefaultConfig(), cascade.Deps{Catalog: cat, Index: idx, Encoder: enc})
	if err != nil {
		t.Fatalf("cascade.New: %v", err)
	}
	return r
}

// TestFixture_Session replays the session fixture sequentially against the seed
// corpus and checks every expectation. Ordering matters: repeats must hit the
// cache entries written by earlier cases.
func TestFixture_Session(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	results, err := Run(context.Background(), seededResolver(t), f.Requests(), Config{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, m := range f.Check(results) {
		t.Error(m)
	}
	for i, r := range results {
		if r.Err == "" && !r.IsSafe {
			t.Errorf("case %s: expected safe output", f.Cases[i].ID)
		}
	}
}

func TestFixture_CheckReportsMismatches(t *testing.T) {
	safe := true
	f := &Fixture{Cases: []FixtureCase{
		{ID: "a", Expect: Expectation{Source: preset.SourceIndex, Contains: []int{7}, Safe: &safe}},
		{ID: "b", Expect: Expectation{Error: true}},
	}}
	results := []Result{
		{ID: "a", Source: preset.SourceFallback, Units: []int{1}, IsSafe: false},
		{ID: "b", Source: preset.SourceIndex},
	}

	got := f.Check(results)
	fields := make([]string, len(got))
	for i, m := range got {
		fields[i] = m.Field
	}
	if strings.Join(fields, ",") != "source,units,safe,error" {
		t.Errorf("unexpected mismatches: %v", got)
	}

	if got := f.Check(results[:1]); len(got) != 1 || got[0].Field != "count" {
		t.Errorf("expected count mismatch, got %v", got)
	}
}

func TestReadRequests(t *testing.T) {
	in := strings.NewReader(`# recorded session
{"vibe_text": "warm vintage tape", "genre": "jazz"}

{"vibe_text": "dreamy", "required_units": [42], "max_units": 4}
`)
	cases, err := ReadRequests(in)
	if err != nil {
		t.Fatalf("ReadRequests: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].ID != "line-2" || cases[1].ID != "line-4" {
		t.Errorf("unexpected ids %s, %s", cases[0].ID, cases[1].ID)
	}
	if cases[1].Request.MaxUnits != 4 || len(cases[1].Request.RequiredUnits) != 1 {
		t.Errorf("unexpected request %+v", cases[1].Request)
	}

	_, err = ReadRequests(strings.NewReader("{\"vibe_text\": \"ok\"}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 parse error, got %v", err)
	}
}

// #endregion fixture-tests
