// Package ir is the in-memory module representation the SafeDispatch passes
// walk. A real SafeDispatch build operates on LLVM IR; this repository has
// no C++ front-end, so Module plays the part of the llvm::Module the
// original passes receive, and Function plays the part of llvm::Function —
// just enough structure (name, linkage, address-taken bit, call sites,
// return count) for the Function-ID Assigner, Call-Site Analyzer, and
// Return-Check Injector to do their jobs and for tests to construct modules
// by hand or load them from a fixture (see LoadTxtar).
package ir

import "github.com/TeamVault/rhoFEM/internal/sd/encode"

// CallKind classifies a call site the way the Call-Site Analyzer does
// (spec.md §4.C).
type CallKind int

const (
	CallStatic CallKind = iota
	CallVirtual
	CallIndirect
	CallTail
)

func (k CallKind) String() string {
	switch k {
	case CallStatic:
		return "static"
	case CallVirtual:
		return "virtual"
	case CallIndirect:
		return "indirect"
	case CallTail:
		return "tail"
	default:
		return "unknown"
	}
}

// SourceLoc is a call site's debug location, or a pseudo location when the
// front-end provided none (spec.md §4.C: "Sites lacking real debug info are
// assigned a pseudo debug location").
type SourceLoc struct {
	File   string
	Line   int
	Col    int
	Pseudo bool // true if Line is a synthetic sequential counter, not real debug info
}

// Key returns the site-key string used to join CallSiteRecords and machine
// instructions across passes ("<filename>:<line>:<col>", or "pseudo:<n>" for
// a pseudo location).
func (l SourceLoc) Key() string {
	if l.Pseudo {
		return "pseudo:" + itoa(l.Line)
	}
	return l.File + ":" + itoa(l.Line) + ":" + itoa(l.Col)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Call is one call instruction inside a Function's body.
type Call struct {
	Loc    SourceLoc
	Kind   CallKind
	Callee string // target mangled name for Static/Virtual/Tail; empty for Indirect

	// CheckedVptr marks this call's callee pointer as flowing from the
	// frontend's checked_vptr intrinsic — the signal the Call-Site Analyzer
	// uses to recognize a virtual call (spec.md §4.C).
	CheckedVptr bool

	// VirtualTargets is the vtable slice's set of possible callee IDs for a
	// Virtual call, supplied by CHA through the frontend. The Analyzer
	// reduces this to (min,max).
	VirtualTargets []uint64

	// Sig is the call's signature, used only for Indirect calls to obtain a
	// type-ID from the Type Encoder.
	Sig encode.FuncSig
}

// Function is one function definition or declaration in the module.
type Function struct {
	Name string

	AddressTaken   bool
	ExternalLinkage bool
	ExternalWeak   bool
	Declaration    bool

	Sig   encode.FuncSig
	Calls []Call

	// Returns is the number of return instructions in the function body.
	// Zero means the function never returns (spec.md §7: "Function with no
	// return instructions | Allowed; recorded with flag NoReturn").
	Returns int
}

// Module is the compilation unit the pipeline processes.
type Module struct {
	Funcs      []*Function
	byName     map[string]*Function
}

// NewModule returns an empty Module.
func NewModule() *Module {
	return &Module{byName: make(map[string]*Function)}
}

// AddFunc appends f to the module, indexing it by name.
func (m *Module) AddFunc(f *Function) {
	if m.byName == nil {
		m.byName = make(map[string]*Function)
	}
	m.Funcs = append(m.Funcs, f)
	m.byName[f.Name] = f
}

// Func looks up a function by its mangled name.
func (m *Module) Func(name string) (*Function, bool) {
	f, ok := m.byName[name]
	return f, ok
}
