// Package landingpad implements the SafeDispatch Landing-Pad Materializer
// (spec component E): the machine-level pass that runs after instruction
// selection and writes the NOP sequence a call site's return address must
// carry so the callee's return check (internal/sd/retcheck) has something
// to read.
//
// Like retcheck, this package re-derives its input from the metadata table
// rather than importing callsite: the original's SDMachineFunction pass
// loads its own call-site maps from named metadata, decoupled from
// SDReturnRange's in-memory CallSiteRecords. Grounded on
// original_source/lib/CodeGen/SafeDispatchMachineFunction.cpp and spec.md
// §4.E/§6.
package landingpad

import (
	"strconv"
	"strings"

	"github.com/TeamVault/rhoFEM/internal/sd/mach"
	"github.com/TeamVault/rhoFEM/internal/sd/metadata"
)

// Kind is a call site's classification as loaded back from metadata.
type Kind int

const (
	Static Kind = iota
	Virtual
	Indirect
	Tail
	Unresolved
)

// UnresolvedSentinel is the noop immediate spec.md §4.E/§6 writes for a call
// the Materializer cannot classify. It is written for sites loaded with the
// "__UNKNOWN__" marker (callee neither resolved nor external) or from a
// malformed sd.return.normal entry; a call whose site key is in neither
// metadata table never reaches Materialize. It is deliberately distinct from
// metadata.UnknownID (0x7FFFF): that constant is retcheck's own
// unknown-caller admission value read out of a *known* landing pad's min_id,
// while this one marks a landing pad E itself never matched to a call site.
const UnresolvedSentinel = 0xFFFFF

// CallSite is E's own view of a call site, parsed from the
// sd.return.{virtual,normal} entries C produced.
type CallSite struct {
	Key  string
	Kind Kind
	Min  uint32 // Virtual: low end of the callee-ID range
	Max  uint32 // Virtual: high end
	ID   uint32 // Static/Indirect: the single embedded ID
}

// LoadCallSites parses every sd.return.virtual / sd.return.normal entry in
// t, keyed by site key.
func LoadCallSites(t *metadata.Table) map[string]*CallSite {
	out := make(map[string]*CallSite)

	for _, entry := range t.Get(metadata.ReturnVirtual) {
		f := metadata.Split(entry)
		// siteKey, className, preciseName, calleeName, min, max
		out[f[0]] = &CallSite{
			Key:  f[0],
			Kind: Virtual,
			Min:  mustU32(f[4]),
			Max:  mustU32(f[5]),
		}
	}

	for _, entry := range t.Get(metadata.ReturnNormal) {
		f := metadata.Split(entry)
		cs := &CallSite{Key: f[0]}
		switch {
		case len(f) >= 2 && f[1] == "__TAIL__":
			cs.Kind = Tail
		case len(f) >= 2 && f[1] == "__UNKNOWN__":
			cs.Kind = Unresolved
		case len(f) >= 3 && strings.HasPrefix(f[1], "__INDIRECT__"):
			// Indirect sites carry a raw type-ID with no magic bit
			// (spec.md §4.D/§6's "indirect-call match" clause), unlike a
			// direct static callee's id|0x80000 — so they need their own
			// Kind rather than collapsing into Static.
			cs.Kind = Indirect
			cs.ID = mustU32(f[2])
		case len(f) >= 3:
			cs.Kind = Static
			cs.ID = mustU32(f[2])
		default:
			cs.Kind = Unresolved
		}
		out[f[0]] = cs
	}

	return out
}

func mustU32(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// Stats counts the call sites Materialize handled, per kind; cmd/sdc logs
// them. It holds no per-ID hit counts or range widths.
type Stats struct {
	TotalSites      int
	VirtualSites    int
	StaticSites     int
	IndirectSites   int
	TailSuppressed  int
	UnresolvedSites int
}

// Materializer runs the Landing-Pad Materializer once per module, against
// one target architecture.
type Materializer struct {
	Arch mach.Arch
}

// New creates a Materializer for the given architecture.
func New(arch mach.Arch) *Materializer {
	return &Materializer{Arch: arch}
}

// Materialize emits one mach.Progs per call site needing a landing pad.
// Every immediate follows the bit-exact wire format of spec.md §4.D/§6:
// virtual and direct-static immediates carry the 0x80000 magic bit baked in
// (so the return check's runtime OR of the same bit against its ID cancels
// it out); the indirect type-ID flavor and the 0xFFFFF unresolved sentinel
// are written raw, with no magic bit.
//
// Tail call sites are intentionally skipped: spec.md §4.E/§7 excludes them
// ("a landing pad after a tail call is unreachable — the caller's frame is
// already gone"), which Stats.TailSuppressed records for the report.
func (m *Materializer) Materialize(sites map[string]*CallSite) (map[string]*mach.Progs, Stats) {
	out := make(map[string]*mach.Progs)
	var stats Stats

	for key, cs := range sites {
		stats.TotalSites++
		switch cs.Kind {
		case Virtual:
			stats.VirtualSites++
			pp := &mach.Progs{}
			width := cs.Max - cs.Min
			m.Arch.Pad.Ginsnop1(pp, cs.Min|metadata.MagicBit)
			m.Arch.Pad.Ginsnop2(pp, width|metadata.MagicBit)
			out[key] = pp

		case Static:
			stats.StaticSites++
			pp := &mach.Progs{}
			m.Arch.Pad.Ginsnop1(pp, cs.ID|metadata.MagicBit)
			out[key] = pp

		case Indirect:
			stats.IndirectSites++
			pp := &mach.Progs{}
			m.Arch.Pad.Ginsnop1(pp, cs.ID)
			out[key] = pp

		case Tail:
			stats.TailSuppressed++

		case Unresolved:
			stats.UnresolvedSites++
			pp := &mach.Progs{}
			m.Arch.Pad.Ginsnop1(pp, UnresolvedSentinel)
			out[key] = pp
		}
	}
	return out, stats
}
