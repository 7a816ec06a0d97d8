// Package retcheck implements the SafeDispatch Return-Check Injector (spec
// component D): for every non-blacklisted function it builds the check tree
// that will be evaluated at that function's return instructions against the
// return address' embedded ID, and provides a pure evaluator so the tree's
// semantics are testable without a real CPU or return address.
//
// Grounded on original_source's SafeDispatchReturnAddressPass.cpp's
// check-emission helpers (buildVirtualCheckInstructions /
// buildNonVirtualCheckInstructions) and spec.md §4.D.
//
// D deliberately does not import the funcid package: like the original's
// SDReturnChecks pass, which loads its own FunctionInfo maps from named
// metadata instead of sharing SDReturnAddress's in-memory state, this
// package re-derives everything it needs from the metadata.Table the
// Function-ID Assigner produced. The metadata table is the only contract.
package retcheck

import (
	"errors"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/TeamVault/rhoFEM/internal/sd/metadata"
	"github.com/TeamVault/rhoFEM/internal/sd/sdlog"
)

// ErrNoChecksUnexplained is the original's `NumberOfChecks == 0` trip-wire
// (SafeDispatchReturnChecks.cpp): a function reached zero checks without
// one of the flags that legitimately explains it.
var ErrNoChecksUnexplained = errors.New("function produced zero return checks without NoReturn/External/NoCaller exemption")

// Kind is a function's classification as loaded back from metadata.
type Kind int

const (
	BlackListed Kind = iota
	Virtual
	Static
)

// Flag mirrors funcid.Flag, parsed back from the sd.funcinfo.flags/<name>
// entry rather than shared directly (see package doc on decoupling).
type Flag int

const (
	NoCaller Flag = iota
	NoReturn
	External
)

func parseFlag(s string) (Flag, bool) {
	switch s {
	case "nocaller":
		return NoCaller, true
	case "noreturn":
		return NoReturn, true
	case "external":
		return External, true
	default:
		return 0, false
	}
}

// FunctionInfo is D's own view of a function, parsed straight out of the
// metadata table B produced — independent of funcid.Record by design (see
// package doc).
type FunctionInfo struct {
	Name      string
	Kind      Kind
	IDs       []uint64
	TypeID    uint32
	HasTypeID bool
	Flags     map[Flag]bool
}

// LoadFunctionInfo parses every sd.funcinfo.{normal,virtual,blacklist,flags}/
// <name> entry out of t (loadFunctionData in the original).
func LoadFunctionInfo(t *metadata.Table) map[string]*FunctionInfo {
	out := make(map[string]*FunctionInfo)

	for _, entry := range t.FunctionSuffixed(metadata.FuncInfoBlacklistPrefix) {
		f := metadata.Split(entry)
		out[f[0]] = &FunctionInfo{Name: f[0], Kind: BlackListed}
	}

	for _, entry := range t.FunctionSuffixed(metadata.FuncInfoNormalPrefix) {
		f := metadata.Split(entry)
		info := &FunctionInfo{Name: f[0], Kind: Static, IDs: []uint64{mustU64(f[1])}}
		if len(f) > 2 {
			info.TypeID, info.HasTypeID = uint32(mustU64(f[2])), true
		}
		out[f[0]] = info
	}

	for _, entry := range t.FunctionSuffixed(metadata.FuncInfoVirtualPrefix) {
		f := metadata.Split(entry)
		n := int(mustU64(f[1]))
		info := &FunctionInfo{Name: f[0], Kind: Virtual}
		for i := 0; i < n; i++ {
			info.IDs = append(info.IDs, mustU64(f[2+i]))
		}
		if len(f) > 2+n {
			info.TypeID, info.HasTypeID = uint32(mustU64(f[2+n])), true
		}
		out[f[0]] = info
	}

	for _, entry := range t.FunctionSuffixed(metadata.FuncInfoFlagsPrefix) {
		f := metadata.Split(entry)
		info, ok := out[f[0]]
		if !ok {
			continue
		}
		info.Flags = make(map[Flag]bool, len(f)-1)
		for _, tok := range f[1:] {
			if fl, ok := parseFlag(tok); ok {
				info.Flags[fl] = true
			}
		}
	}

	return out
}

func mustU64(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// CheckKind is one node's comparison shape.
type CheckKind int

const (
	NoCheck CheckKind = iota // blacklisted, or a virtual function with no assigned IDs
	Equality
	Range
	Augmented
)

// Check is the tree the Return-Check Injector attaches to every return
// instruction of a function (spec.md §3's "check tree"). Equality and Range
// are mutually exclusive leaves; Augmented wraps one of them with the extra
// disjuncts an address-taken function's check must admit.
type Check struct {
	Kind CheckKind

	Target uint64 // Equality: the function's single static ID
	Min    uint64 // Range: lowest virtual ID
	Max    uint64 // Range: highest virtual ID

	Inner  *Check // Augmented: the base equality/range check
	TypeID uint32 // Augmented: accept a matching indirect type-ID
}

// Build constructs the check tree for fn (a NoCheck node for a nil or
// blacklisted fn, meaning no check is ever injected).
func Build(fn *FunctionInfo) *Check {
	if fn == nil || fn.Kind == BlackListed {
		return &Check{Kind: NoCheck}
	}
	if len(fn.IDs) == 0 {
		// Virtual function CHA never resolved an ID for (spec §7): no check
		// can be built, so none is injected.
		return &Check{Kind: NoCheck}
	}

	// minID/maxID/Target are compile-time constants folded directly into the
	// comparison instruction's immediate operand, so MagicBit is baked in
	// here, matching how landingpad bakes the same bit into the runtime
	// side's Static/Virtual immediates; Evaluate ORs it in again regardless,
	// since the comparison is defined as a bitwise-or ahead of the compare
	// and a bit already set survives that unchanged.
	var base *Check
	if fn.Kind == Virtual && len(fn.IDs) > 1 {
		min, max := fn.IDs[0], fn.IDs[0]
		for _, id := range fn.IDs[1:] {
			if id < min {
				min = id
			}
			if id > max {
				max = id
			}
		}
		base = &Check{Kind: Range, Min: min | metadata.MagicBit, Max: max | metadata.MagicBit}
	} else {
		base = &Check{Kind: Equality, Target: fn.IDs[0] | metadata.MagicBit}
	}

	if fn.HasTypeID {
		return &Check{Kind: Augmented, Inner: base, TypeID: fn.TypeID}
	}
	return base
}

// Evaluate reports whether returnID — the 20-bit value a landing pad left
// at the return address — satisfies c. The comparison instruction ORs in
// MagicBit itself (landingpad already bakes it into a Static/Virtual
// landing pad's immediate, so the OR below is redundant in that case but
// harmless; an Indirect landing pad's bare type-ID needs no such OR, which
// is why the Augmented branch compares c.TypeID without one). This is the
// pure, CPU-free stand-in for the inserted or/icmp/br sequence spec.md
// §4.D describes. It covers the type-ID and unknown-sentinel disjuncts of
// an Augmented check; see EvaluateAtReturn for the third disjunct, the
// external-call boundary test.
func (c *Check) Evaluate(returnID uint64) bool {
	switch c.Kind {
	case NoCheck:
		return true

	case Equality:
		return c.Target == (returnID | metadata.MagicBit)

	case Range:
		width := c.Max - c.Min
		return (returnID|metadata.MagicBit)-c.Min <= width

	case Augmented:
		if returnID == metadata.UnknownID {
			return true
		}
		if returnID == uint64(c.TypeID) {
			return true
		}
		return c.Inner.Evaluate(returnID)

	default:
		return false
	}
}

// ExternalBoundary is the page-rounded address above which a return is
// assumed to originate outside the instrumented binary (e.g. through a
// dynamically loaded callback or a syscall trampoline) and is admitted
// without consulting the ID at all — spec.md §4.D's "external-call
// allowance" for address-taken functions. The boundary is rounded up to a
// real page via unix.Getpagesize() rather than a hardcoded 4KiB, so the
// check stays correct if the runtime's page size differs.
func ExternalBoundary(textEnd uint64) uint64 {
	pageSize := uint64(unix.Getpagesize())
	if textEnd%pageSize == 0 {
		return textEnd
	}
	return (textEnd/pageSize + 1) * pageSize
}

// EvaluateAtReturn is Evaluate extended with the external-call boundary
// disjunct: for an Augmented check, a return address at or above boundary
// is admitted unconditionally, before returnID is even consulted.
func (c *Check) EvaluateAtReturn(returnAddr, boundary uint64, returnID uint64) bool {
	if c.Kind == Augmented && returnAddr >= boundary {
		return true
	}
	return c.Evaluate(returnID)
}

// CheckExplained diagnoses a function that produced zero checks
// (Kind == NoCheck) without one of the three flags that make that
// legitimate (NoReturn, External, or the original's implicit "never
// called"/NoCaller exemption). Carried from the original's
// `NumberOfChecks == 0` warning in SafeDispatchReturnChecks.cpp; not fatal,
// just logged.
func CheckExplained(fn *FunctionInfo, check *Check) {
	if check.Kind != NoCheck || fn == nil || fn.Kind == BlackListed {
		return
	}
	if fn.Flags[NoReturn] || fn.Flags[External] || fn.Flags[NoCaller] {
		return
	}
	sdlog.Warn("%s: %v", fn.Name, ErrNoChecksUnexplained)
}
