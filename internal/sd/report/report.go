// Package report writes the end-of-build statistics the Return-Check
// Injector accumulates: the original's exact five-section CSV breakdown,
// plus a sibling pprof profile and a blake2b build fingerprint (supplemented
// additions named in SPEC_FULL.md's domain stack).
//
// Grounded on original_source/lib/Transforms/IPO/SafeDispatchReturnChecks.cpp's
// storeStatistics.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/mod/semver"

	"github.com/google/pprof/profile"

	"github.com/TeamVault/rhoFEM/internal/sd/metadata"
	"github.com/TeamVault/rhoFEM/internal/sd/retcheck"
)

// LoadExtraIDs parses every sd.funcinfo.extraids/<name> entry out of t, for
// CollectStats' extraIDs argument.
func LoadExtraIDs(t *metadata.Table) map[string][]uint64 {
	out := make(map[string][]uint64)
	for _, entry := range t.FunctionSuffixed(metadata.FuncInfoExtraIDsPrefix) {
		f := metadata.Split(entry)
		ids := make([]uint64, 0, len(f)-1)
		for _, tok := range f[1:] {
			n, err := strconv.ParseUint(tok, 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, n)
		}
		out[f[0]] = ids
	}
	return out
}

// FunctionEntry is one row of a section in the five-section breakdown.
type FunctionEntry struct {
	Name     string
	IDs      []uint64
	ExtraIDs []uint64 // sorted ascending, matching funcid's emission order
}

// Stats is everything storeStatistics needs: the five function classes plus
// the running total of injected checks.
type Stats struct {
	TotalChecks int

	Static      []FunctionEntry
	Virtual     []FunctionEntry
	External    []FunctionEntry
	NoReturn    []FunctionEntry
	BlackListed []FunctionEntry
}

// CollectStats classifies every function info loaded from the Function-ID
// Assigner's metadata into Stats' five buckets, counting one check per
// Equality/Range leaf a Build(fn) produces, one more for an Augmented
// wrapper, and 0 for NoCheck.
//
// The buckets are not mutually exclusive: runOnModule in the original
// (SafeDispatchReturnChecks.cpp:178-206) always records a function under its
// Type bucket (Static/Virtual/BlackListed) and additionally under
// External/NoReturn whenever those flags are set, so an externally-linked
// virtual function is dumped in both the "Virtual function checks" and
// "External functions" sections.
func CollectStats(infos map[string]*retcheck.FunctionInfo, extraIDs map[string][]uint64) *Stats {
	s := &Stats{}
	names := make([]string, 0, len(infos))
	for name := range infos {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fn := infos[name]
		entry := FunctionEntry{Name: name, IDs: fn.IDs, ExtraIDs: extraIDs[name]}

		if fn.Kind == retcheck.BlackListed {
			s.BlackListed = append(s.BlackListed, entry)
			continue
		}

		if fn.Kind == retcheck.Virtual {
			s.Virtual = append(s.Virtual, entry)
		} else {
			s.Static = append(s.Static, entry)
		}
		if fn.Flags[retcheck.NoReturn] {
			s.NoReturn = append(s.NoReturn, entry)
		}
		if fn.Flags[retcheck.External] {
			s.External = append(s.External, entry)
		}

		check := retcheck.Build(fn)
		s.TotalChecks += countChecks(check)
	}
	return s
}

func countChecks(c *retcheck.Check) int {
	switch c.Kind {
	case retcheck.NoCheck:
		return 0
	case retcheck.Augmented:
		return 1 + countChecks(c.Inner)
	default:
		return 1
	}
}

// WriteCSV writes the original's exact five-section layout: a totals line,
// then one "### <section>: <n>" header per class followed by one
// comma-joined "name,id...,extraid..." line per function and a "##"
// terminator, in Static/Virtual/External/NoReturn/BlackListed order.
func WriteCSV(w io.Writer, s *Stats) error {
	fmt.Fprintf(w, "Total number of checks: %d\n\n", s.TotalChecks)

	sections := []struct {
		title   string
		entries []FunctionEntry
	}{
		{"Static function checks", s.Static},
		{"Virtual function checks", s.Virtual},
		{"External functions", s.External},
		{"Without return", s.NoReturn},
		{"Blacklisted functions", s.BlackListed},
	}
	for _, sec := range sections {
		fmt.Fprintf(w, "### %s: %d\n", sec.title, len(sec.entries))
		for _, e := range sec.entries {
			fmt.Fprint(w, e.Name)
			for _, id := range e.IDs {
				fmt.Fprintf(w, ",%d", id)
			}
			for _, id := range e.ExtraIDs {
				fmt.Fprintf(w, ",%d", id)
			}
			fmt.Fprint(w, "\n")
		}
		fmt.Fprint(w, "##\n")
	}
	return nil
}

// BuildFingerprint returns a short blake2b-128 digest of the CSV rendering
// of s, so two builds' reports can be compared for content-equality without
// diffing the whole file (conceptually the same job cmd/buildid does for
// object files in the teacher toolchain).
func BuildFingerprint(s *Stats) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, s); err != nil {
		return "", err
	}
	h, err := blake2b.New(16, nil)
	if err != nil {
		return "", err
	}
	if _, err := h.Write(buf.Bytes()); err != nil {
		return "", err
	}
	return fmt.Sprintf("blake2b-128:%x", h.Sum(nil)), nil
}

// ToProfile renders s as a pprof profile: one sample per function, value =
// len(IDs)+len(ExtraIDs) ("checks admitted"), labeled with its class and
// keyed by name — a standard, tool-consumable sibling to the mandated CSV.
func ToProfile(s *Stats) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "checks", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "checks", Unit: "count"},
		Period:     1,
	}

	classes := []struct {
		name    string
		entries []FunctionEntry
	}{
		{"static", s.Static},
		{"virtual", s.Virtual},
		{"external", s.External},
		{"noreturn", s.NoReturn},
		{"blacklisted", s.BlackListed},
	}

	fnID := uint64(1)
	locID := uint64(1)
	for _, cls := range classes {
		for _, e := range cls.entries {
			fn := &profile.Function{ID: fnID, Name: e.Name}
			loc := &profile.Location{ID: locID, Line: []profile.Line{{Function: fn}}}
			p.Function = append(p.Function, fn)
			p.Location = append(p.Location, loc)
			p.Sample = append(p.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{int64(len(e.IDs) + len(e.ExtraIDs))},
				Label:    map[string][]string{"class": {cls.name}},
			})
			fnID++
			locID++
		}
	}
	return p
}

// StampedVersion validates toolchainVersion against semver and returns it
// unchanged, or an error if it is not a valid (optionally "v"-prefixed)
// semantic version — guarding the `cmd/sdc -toolchain-version` flag before
// any report is written. The version is not written into the CSV or the
// profile.
func StampedVersion(toolchainVersion string) (string, error) {
	v := toolchainVersion
	if len(v) == 0 || v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("report: invalid toolchain version %q", toolchainVersion)
	}
	return toolchainVersion, nil
}

// CompareVersions reports whether a build's toolchain version regressed
// relative to a previous report's stamped version (semver.Compare(a,b) < 0).
func CompareVersions(current, previous string) int {
	cur, prev := current, previous
	if len(cur) == 0 || cur[0] != 'v' {
		cur = "v" + cur
	}
	if len(prev) == 0 || prev[0] != 'v' {
		prev = "v" + prev
	}
	return semver.Compare(cur, prev)
}
