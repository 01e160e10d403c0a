package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// maxLine bounds one JSON-lines request.
const maxLine = 64 << 10

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureCase is one request and what its resolution must look like.
type FixtureCase struct {
	ID      string         `json:"id"`
	Request preset.Request `json:"request"`
	Expect  Expectation    `json:"expect"`
}

// Expectation lists the checked properties of a result. Zero fields are not
// checked.
type Expectation struct {
	Source   preset.Source `json:"source,omitempty"`
	Origin   preset.Source `json:"origin,omitempty"`
	Contains []int         `json:"contains,omitempty"` // units that must be active
	Safe     *bool         `json:"safe,omitempty"`
	Error    bool          `json:"error,omitempty"` // request must be rejected
}

// Mismatch is one failed expectation.
type Mismatch struct {
	ID    string
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s want %s, got %s", m.ID, m.Field, m.Want, m.Got)
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Requests returns the fixture's cases in order.
func (f *Fixture) Requests() []Case {
	cases := make([]Case, len(f.Cases))
	for i, fc := range f.Cases {
		cases[i] = Case{ID: fc.ID, Request: fc.Request}
	}
	return cases
}

// ReadRequests parses one JSON request per line. Blank lines and lines
// starting with '#' are skipped; cases are named by line number.
func ReadRequests(r io.Reader) ([]Case, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	var cases []Case
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 || b[0] == '#' {
			continue
		}
		var req preset.Request
		if err := json.Unmarshal(b, &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cases = append(cases, Case{ID: "line-" + strconv.Itoa(line), Request: req})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	return cases, nil
}

// #endregion fixture-loader

// #region check

// Check compares results, in fixture order, with each case's expectation.
func (f *Fixture) Check(results []Result) []Mismatch {
	var out []Mismatch
	if len(results) != len(f.Cases) {
		return []Mismatch{{Field: "count", Want: strconv.Itoa(len(f.Cases)), Got: strconv.Itoa(len(results))}}
	}
	for i, fc := range f.Cases {
		got, want := results[i], fc.Expect
		add := func(field, w, g string) {
			out = append(out, Mismatch{ID: fc.ID, Field: field, Want: w, Got: g})
		}
		if want.Error {
			if got.Err == "" {
				add("error", "rejected", string(got.Source))
			}
			continue
		}
		if got.Err != "" {
			add("error", "none", got.Err)
			continue
		}
		if want.Source != "" && got.Source != want.Source {
			add("source", string(want.Source), string(got.Source))
		}
		if want.Origin != "" && got.Origin != want.Origin {
			add("origin", string(want.Origin), string(got.Origin))
		}
		for _, id := range want.Contains {
			if !slices.Contains(got.Units, id) {
				add("units", "unit "+strconv.Itoa(id), fmt.Sprint(got.Units))
			}
		}
		if want.Safe != nil && got.IsSafe != *want.Safe {
			add("safe", strconv.FormatBool(*want.Safe), strconv.FormatBool(got.IsSafe))
		}
	}
	return out
}

// #endregion check
