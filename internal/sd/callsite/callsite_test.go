package callsite

import (
	"testing"

	"github.com/TeamVault/rhoFEM/internal/sd/encode"
	"github.com/TeamVault/rhoFEM/internal/sd/ir"
	"github.com/TeamVault/rhoFEM/internal/sd/metadata"
)

func TestAnalyzeVirtualCallDerivesRange(t *testing.T) {
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{
				Kind:           ir.CallVirtual,
				CheckedVptr:    true,
				Callee:         "_ZN1D1gEv",
				VirtualTargets: []uint64{14, 13}, // out of order on purpose
				Loc:            ir.SourceLoc{File: "main.cpp", Line: 24, Col: 3},
			},
		},
	})

	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), nil)
	res := a.Analyze(mod)

	rec := res.Sites["main.cpp:24:3"]
	if rec == nil {
		t.Fatal("no record for the virtual call site")
	}
	if rec.Min != 13 || rec.Max != 14 {
		t.Errorf("Min/Max = %d/%d, want 13/14", rec.Min, rec.Max)
	}
	entries := res.Metadata.Get("sd.return.virtual")
	if len(entries) != 1 {
		t.Fatalf("expected 1 sd.return.virtual entry, got %d", len(entries))
	}
}

func TestAnalyzeVirtualCallEmptyTargetsSkipped(t *testing.T) {
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{Kind: ir.CallVirtual, CheckedVptr: true, Loc: ir.SourceLoc{File: "x.cpp", Line: 1, Col: 1}},
		},
	})
	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), nil)
	res := a.Analyze(mod)
	if len(res.Sites) != 0 {
		t.Errorf("expected no sites for a virtual call with no CHA targets, got %d", len(res.Sites))
	}
}

func TestAnalyzeStaticCallResolvesID(t *testing.T) {
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{Kind: ir.CallStatic, Callee: "callee", Loc: ir.SourceLoc{File: "x.cpp", Line: 5, Col: 1}},
		},
	})
	idMap := map[string]uint64{"callee": 42}
	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), idMap)
	res := a.Analyze(mod)

	rec := res.Sites["x.cpp:5:1"]
	if rec == nil || rec.Kind != Static || rec.ID != 42 {
		t.Fatalf("got %+v, want Static ID=42", rec)
	}
}

func TestAnalyzeIndirectCallGetsTypeID(t *testing.T) {
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{
				Kind: ir.CallIndirect,
				Sig:  encode.FuncSig{Return: encode.Type{Kind: encode.Int32}},
				Loc:  ir.SourceLoc{File: "x.cpp", Line: 9, Col: 1},
			},
		},
	})
	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), nil)
	res := a.Analyze(mod)

	rec := res.Sites["x.cpp:9:1"]
	if rec == nil || rec.Kind != Indirect {
		t.Fatalf("got %+v, want Indirect", rec)
	}
	if rec.ID != uint64(encode.DefaultCeiling) {
		t.Errorf("indirect call type-ID = %d, want ceiling %d", rec.ID, encode.DefaultCeiling)
	}
	if rec.CalleeName != "__INDIRECT__x.cpp:9:1" {
		t.Errorf("CalleeName = %q", rec.CalleeName)
	}
}

func TestAnalyzeTailCallSuppressesStaticID(t *testing.T) {
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{Kind: ir.CallTail, Callee: "callee", Loc: ir.SourceLoc{File: "x.cpp", Line: 3, Col: 1}},
		},
	})
	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), map[string]uint64{"callee": 7})
	res := a.Analyze(mod)

	rec := res.Sites["x.cpp:3:1"]
	if rec == nil || rec.Kind != Tail || rec.CalleeName != "__TAIL__" {
		t.Fatalf("got %+v, want Tail/__TAIL__", rec)
	}
}

func TestAnalyzeAssignsPseudoLocations(t *testing.T) {
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{Kind: ir.CallStatic, Callee: "a"},
			{Kind: ir.CallStatic, Callee: "b"},
		},
	})
	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), map[string]uint64{"a": 1, "b": 2})
	res := a.Analyze(mod)

	if _, ok := res.Sites["pseudo:1"]; !ok {
		t.Error("first call missing pseudo:1 site key")
	}
	if _, ok := res.Sites["pseudo:2"]; !ok {
		t.Error("second call missing pseudo:2 site key")
	}
}

func TestAnalyzeUnresolvedNonExternalCalleeGetsUnknownSentinel(t *testing.T) {
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{Kind: ir.CallStatic, Callee: "ghost", Loc: ir.SourceLoc{File: "x.cpp", Line: 1, Col: 1}},
		},
	})
	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), nil)
	res := a.Analyze(mod)

	rec := res.Sites["x.cpp:1:1"]
	if rec == nil || rec.Kind != Unknown {
		t.Fatalf("got %+v, want Unknown", rec)
	}
	found := false
	for _, e := range res.Metadata.Get("sd.return.normal") {
		if e == "x.cpp:1:1,__UNKNOWN__" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an __UNKNOWN__ sentinel entry, got %v", res.Metadata.Get("sd.return.normal"))
	}
}

func TestAnalyzeExternalCalleeLeftAlone(t *testing.T) {
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{Name: "printf", Declaration: true, ExternalLinkage: true})
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{Kind: ir.CallStatic, Callee: "printf", Loc: ir.SourceLoc{File: "x.cpp", Line: 2, Col: 1}},
		},
	})
	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), nil)
	res := a.Analyze(mod)

	if rec, ok := res.Sites["x.cpp:2:1"]; ok {
		t.Errorf("an external callee should be left alone (no record, no metadata), got %+v", rec)
	}
	for _, e := range res.Metadata.Get("sd.return.normal") {
		if metadata.Split(e)[0] == "x.cpp:2:1" {
			t.Errorf("an external callee should emit no sd.return.normal entry, got %q", e)
		}
	}
}

func TestAnalyzeDisjointMetadataNames(t *testing.T) {
	// Testable Property 4: a site key must not appear under both
	// sd.return.virtual and sd.return.normal.
	mod := ir.NewModule()
	mod.AddFunc(&ir.Function{
		Name: "caller",
		Calls: []ir.Call{
			{Kind: ir.CallVirtual, CheckedVptr: true, VirtualTargets: []uint64{1, 2},
				Loc: ir.SourceLoc{File: "x.cpp", Line: 1, Col: 1}},
			{Kind: ir.CallStatic, Callee: "callee",
				Loc: ir.SourceLoc{File: "x.cpp", Line: 2, Col: 1}},
		},
	})
	a := NewAnalyzer(encode.NewEncoder(encode.DefaultCeiling), map[string]uint64{"callee": 5})
	res := a.Analyze(mod)

	virtualKeys := map[string]bool{}
	for _, e := range res.Metadata.Get("sd.return.virtual") {
		virtualKeys[splitFirst(e)] = true
	}
	for _, e := range res.Metadata.Get("sd.return.normal") {
		if virtualKeys[splitFirst(e)] {
			t.Errorf("site key %q present in both virtual and normal metadata", splitFirst(e))
		}
	}
}

func splitFirst(entry string) string {
	for i, c := range entry {
		if c == ',' {
			return entry[:i]
		}
	}
	return entry
}
