package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/TeamVault/rhoFEM/internal/sd/retcheck"
)

func sampleInfos() map[string]*retcheck.FunctionInfo {
	return map[string]*retcheck.FunctionInfo{
		"_ZN7helperEv": {Name: "_ZN7helperEv", Kind: retcheck.Static, IDs: []uint64{5}},
		"_ZN1D1gEv":    {Name: "_ZN1D1gEv", Kind: retcheck.Virtual, IDs: []uint64{13, 14}},
		"_ZN7extCallEv": {
			Name: "_ZN7extCallEv", Kind: retcheck.Static, IDs: []uint64{6},
			Flags: map[retcheck.Flag]bool{retcheck.External: true},
		},
		"_ZN7neverEv": {
			Name: "_ZN7neverEv", Kind: retcheck.Static, IDs: []uint64{7},
			Flags: map[retcheck.Flag]bool{retcheck.NoReturn: true},
		},
		"__cxa_throw": {Name: "__cxa_throw", Kind: retcheck.BlackListed},
	}
}

func TestCollectStatsBucketsByClass(t *testing.T) {
	s := CollectStats(sampleInfos(), nil)

	// Buckets are not mutually exclusive: extCall is External-flagged but
	// still Static-kinded, and never is NoReturn-flagged but still
	// Static-kinded, so both land in Static *and* their flag bucket.
	if len(s.Static) != 3 {
		t.Errorf("Static = %+v, want 3 entries (helper, extCall, never)", s.Static)
	}
	if len(s.Virtual) != 1 || s.Virtual[0].Name != "_ZN1D1gEv" {
		t.Errorf("Virtual = %+v", s.Virtual)
	}
	if len(s.External) != 1 || s.External[0].Name != "_ZN7extCallEv" {
		t.Errorf("External = %+v", s.External)
	}
	if len(s.NoReturn) != 1 || s.NoReturn[0].Name != "_ZN7neverEv" {
		t.Errorf("NoReturn = %+v", s.NoReturn)
	}
	if len(s.BlackListed) != 1 {
		t.Errorf("BlackListed = %+v", s.BlackListed)
	}
	foundInStatic := func(name string) bool {
		for _, e := range s.Static {
			if e.Name == name {
				return true
			}
		}
		return false
	}
	if !foundInStatic("_ZN7extCallEv") || !foundInStatic("_ZN7neverEv") {
		t.Errorf("External/NoReturn functions should still appear in Static: %+v", s.Static)
	}
	// helper(1) + D::g(1) + extCall(1) + never(1); blacklisted contributes 0.
	if s.TotalChecks != 4 {
		t.Errorf("TotalChecks = %d, want 4", s.TotalChecks)
	}
}

func TestWriteCSVFiveSections(t *testing.T) {
	s := CollectStats(sampleInfos(), nil)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Total number of checks: 4",
		"### Static function checks: 3",
		"### Virtual function checks: 1",
		"### External functions: 1",
		"### Without return: 1",
		"### Blacklisted functions: 1",
		"_ZN1D1gEv,13,14",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("CSV output missing %q\nfull output:\n%s", want, out)
		}
	}
}

func TestBuildFingerprintDeterministic(t *testing.T) {
	s := CollectStats(sampleInfos(), nil)
	a, err := BuildFingerprint(s)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildFingerprint(s)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("fingerprint not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "blake2b-128:") {
		t.Errorf("fingerprint = %q, want blake2b-128: prefix", a)
	}
}

func TestStampedVersionRejectsInvalid(t *testing.T) {
	if _, err := StampedVersion("not-a-version"); err == nil {
		t.Error("expected an error for an invalid semver string")
	}
	if _, err := StampedVersion("1.2.3"); err != nil {
		t.Errorf("1.2.3 should be accepted (with an implicit v prefix): %v", err)
	}
}

func TestCompareVersions(t *testing.T) {
	if CompareVersions("1.2.0", "1.3.0") >= 0 {
		t.Error("1.2.0 should compare less than 1.3.0")
	}
	if CompareVersions("2.0.0", "1.9.9") <= 0 {
		t.Error("2.0.0 should compare greater than 1.9.9")
	}
}

func TestToProfileOneSamplePerBucketEntry(t *testing.T) {
	s := CollectStats(sampleInfos(), nil)
	p := ToProfile(s)
	// Static(3) + Virtual(1) + External(1) + NoReturn(1) + BlackListed(1):
	// a function flagged External or NoReturn produces a sample in both its
	// Static/Virtual bucket and its flag bucket, matching CollectStats'
	// non-exclusive classification.
	if len(p.Sample) != 7 {
		t.Errorf("len(Sample) = %d, want 7", len(p.Sample))
	}
}
