// Package cha defines the boundary this repository consumes from
// class-hierarchy analysis. CHA itself — walking a C++ class hierarchy,
// computing override sets, numbering virtual IDs contiguously per vtable
// slice — is explicitly out of scope for SafeDispatch return protection (see
// spec.md §1); this package only states the three operations the rest of
// the pipeline calls, plus a fixture implementation for driving the
// pipeline in tests and in the txtar-fixture-based cmd/sdc pipeline where no
// real CHA pass exists.
package cha

// Info is the read interface the Function-ID Assigner and Call-Site Analyzer
// need from CHA.
type Info interface {
	// BuildFunctionInfo must be called once before GetFunctionID/GetMaxID are
	// trusted; it mutates CHA's internal state (vtable layout, ID
	// assignment). Mirrors SDBuildCHA::buildFunctionInfo().
	BuildFunctionInfo()

	// GetFunctionID returns the ordered set of IDs CHA assigned to the named
	// virtual method (one per concrete override reachable through the
	// class's vtables; more than one under diamond inheritance). An empty
	// result means CHA does not recognize the symbol as virtual.
	GetFunctionID(mangledName string) []uint64

	// GetMaxID returns the highest virtual ID CHA assigned in the module.
	// Function-ID Assigner starts handing out static IDs at GetMaxID()+1.
	GetMaxID() uint64
}

// Fixture is a minimal, deterministic Info used by tests and by cmd/sdc when
// loading a txtar module fixture: CHA's real numbering algorithm is out of
// scope, so fixtures simply state, per virtual method name, the ID set CHA
// would have produced.
type Fixture struct {
	ids   map[string][]uint64
	maxID uint64
	built bool
}

// NewFixture builds a Fixture from an explicit name -> ID-set map and the
// module's max virtual ID.
func NewFixture(ids map[string][]uint64, maxID uint64) *Fixture {
	cp := make(map[string][]uint64, len(ids))
	for k, v := range ids {
		dup := make([]uint64, len(v))
		copy(dup, v)
		cp[k] = dup
	}
	return &Fixture{ids: cp, maxID: maxID}
}

func (f *Fixture) BuildFunctionInfo() { f.built = true }

func (f *Fixture) GetFunctionID(mangledName string) []uint64 {
	ids, ok := f.ids[mangledName]
	if !ok {
		return nil
	}
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

func (f *Fixture) GetMaxID() uint64 { return f.maxID }

// Built reports whether BuildFunctionInfo has run; used by tests asserting
// pass-ordering (spec §9: "a test harness running passes out of order is a
// useful negative test").
func (f *Fixture) Built() bool { return f.built }
