// Package callsite implements the SafeDispatch Call-Site Analyzer (spec
// component C): it walks every call in a module, classifies it as Virtual,
// Static, Indirect, Tail, or Unknown, computes the target-ID (or ID range) the
// return check at the callee must accept, and records it keyed by a
// "file:line:col" site key (or a pseudo key when debug info is absent).
//
// Grounded on original_source's SafeDispatchReturnRange.h interface and the
// entry formats spec.md §4.C/§6 describe for sd.return.virtual /
// sd.return.normal.
package callsite

import (
	"fmt"

	"github.com/TeamVault/rhoFEM/internal/sd/encode"
	"github.com/TeamVault/rhoFEM/internal/sd/ir"
	"github.com/TeamVault/rhoFEM/internal/sd/metadata"
	"github.com/TeamVault/rhoFEM/internal/sd/sdlog"
)

// Kind classifies a call site.
type Kind int

const (
	Static Kind = iota
	Virtual
	Indirect
	Tail
	Unknown
)

// Record is one CallSiteRecord (spec.md §3), keyed by site key in the
// Analyzer's result map.
type Record struct {
	Kind Kind

	// Min/Max are valid for Virtual (inclusive ID range).
	Min, Max uint64

	// ID is valid for Static and Indirect.
	ID uint64

	// CalleeName is the intended callee's mangled name; for Indirect it is
	// the synthetic "__INDIRECT__<site-key>" token, for Tail it is the
	// literal "__TAIL__", and for Unknown (unresolved, non-external) it is the
	// unresolved callee's name; the metadata entry for an Unknown site carries
	// the "__UNKNOWN__" marker in its place (spec.md §3, §7).
	CalleeName string

	// ClassName/PreciseName are diagnostic-only fields carried in the
	// virtual metadata tuple for tooling/debugging; this codebase has no
	// real class hierarchy so they default to CalleeName.
	ClassName, PreciseName string
}

// Analyzer runs the Call-Site Analyzer once per module.
type Analyzer struct {
	Encoder      *encode.Encoder
	FunctionIDMap map[string]uint64 // from funcid.Result, resolves a static callee to its assigned ID

	pseudoLoc uint64 // next pseudo debug-location counter (starts at 1, spec §4.C)
}

// NewAnalyzer creates an Analyzer sharing enc with the Function-ID Assigner
// (so indirect call sites and address-taken functions agree on type-IDs) and
// idMap from that Assigner's Result.
func NewAnalyzer(enc *encode.Encoder, idMap map[string]uint64) *Analyzer {
	return &Analyzer{Encoder: enc, FunctionIDMap: idMap, pseudoLoc: 1}
}

// Result is the Analyzer's per-module output.
type Result struct {
	Sites    map[string]*Record
	Metadata *metadata.Table
}

// Analyze walks every call in mod and produces call-site records plus their
// metadata tuples.
func (a *Analyzer) Analyze(mod *ir.Module) *Result {
	res := &Result{Sites: make(map[string]*Record), Metadata: metadata.New()}

	// A callee absent from FunctionIDMap but present in mod.Funcs as a
	// declaration or external/weak definition is a real external symbol
	// (e.g. a libc call): spec §7 says those are left alone entirely, not
	// given an Unknown sentinel.
	external := make(map[string]bool, len(mod.Funcs))
	for _, f := range mod.Funcs {
		if f.ExternalLinkage || f.ExternalWeak || f.Declaration {
			external[f.Name] = true
		}
	}

	for _, f := range mod.Funcs {
		for i := range f.Calls {
			call := &f.Calls[i]
			loc := a.resolveLoc(call.Loc)
			call.Loc = loc
			key := loc.Key()

			rec := a.classify(call, key, external)
			if rec == nil {
				continue // virtual site with empty CHA targets, or an external callee: skipped per spec §7
			}
			res.Sites[key] = rec
			emit(res.Metadata, key, rec)
		}
	}
	return res
}

// resolveLoc assigns a pseudo location to calls lacking real debug info;
// Analyze stores the result back into call.Loc the way the original
// re-attaches the pseudo DebugLoc to the call instruction so the backend pass
// can read it back.
func (a *Analyzer) resolveLoc(loc ir.SourceLoc) ir.SourceLoc {
	if loc.File != "" {
		return loc
	}
	assigned := ir.SourceLoc{Line: int(a.pseudoLoc), Pseudo: true}
	a.pseudoLoc++
	return assigned
}

func (a *Analyzer) classify(call *ir.Call, siteKey string, external map[string]bool) *Record {
	switch {
	case call.CheckedVptr:
		if len(call.VirtualTargets) == 0 {
			// "Virtual call site whose CHA target set is empty: Skip (no
			// metadata emitted for that site)." spec.md §7.
			return nil
		}
		min, max := call.VirtualTargets[0], call.VirtualTargets[0]
		for _, id := range call.VirtualTargets[1:] {
			if id < min {
				min = id
			}
			if id > max {
				max = id
			}
		}
		name := call.Callee
		if name == "" {
			name = "<virtual>"
		}
		return &Record{Kind: Virtual, Min: min, Max: max, CalleeName: name, ClassName: name, PreciseName: name}

	case call.Kind == ir.CallTail:
		return &Record{Kind: Tail, CalleeName: "__TAIL__"}

	case call.Callee == "":
		typeID := a.Encoder.TypeID(call.Sig)
		return &Record{Kind: Indirect, ID: uint64(typeID), CalleeName: "__INDIRECT__" + siteKey}

	default:
		id, ok := a.FunctionIDMap[call.Callee]
		if ok {
			return &Record{Kind: Static, ID: id, CalleeName: call.Callee}
		}
		if external[call.Callee] {
			// Left alone per spec §7: an external/libc callee never gets a
			// landing pad, so no record (and no metadata) is produced.
			return nil
		}
		sdlog.Warn("call to %s (@%s) could not be resolved to a known function", call.Callee, siteKey)
		return &Record{Kind: Unknown, CalleeName: call.Callee}
	}
}

func emit(t *metadata.Table, siteKey string, rec *Record) {
	switch rec.Kind {
	case Virtual:
		t.Add(metadata.ReturnVirtual, metadata.Join(
			siteKey, rec.ClassName, rec.PreciseName, rec.CalleeName,
			fmt.Sprintf("%d", rec.Min), fmt.Sprintf("%d", rec.Max)))

	case Static:
		t.Add(metadata.ReturnNormal, metadata.Join(siteKey, rec.CalleeName, fmt.Sprintf("%d", rec.ID)))

	case Indirect:
		t.Add(metadata.ReturnNormal, metadata.Join(siteKey, rec.CalleeName, fmt.Sprintf("%d", rec.ID)))

	case Tail:
		t.Add(metadata.ReturnNormal, metadata.Join(siteKey, rec.CalleeName))

	case Unknown:
		// No id field at all; the Materializer recognizes the "__UNKNOWN__"
		// marker and writes the noop(0xFFFFF) sentinel landing pad itself
		// (spec.md §4.E/§6).
		t.Add(metadata.ReturnNormal, metadata.Join(siteKey, "__UNKNOWN__"))
	}
}
