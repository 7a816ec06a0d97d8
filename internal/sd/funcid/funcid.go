// Package funcid implements the SafeDispatch Function-ID Assigner (spec
// component B): it classifies every function in a module as BlackListed,
// Virtual, or Static and assigns each one its set of caller-expected IDs.
//
// Grounded on original_source's SafeDispatchReturnAddressPass.cpp
// (SDReturnAddress::processFunction and friends).
package funcid

import (
	"sort"
	"strings"

	"github.com/TeamVault/rhoFEM/internal/sd/cha"
	"github.com/TeamVault/rhoFEM/internal/sd/encode"
	"github.com/TeamVault/rhoFEM/internal/sd/ir"
	"github.com/TeamVault/rhoFEM/internal/sd/metadata"
	"github.com/TeamVault/rhoFEM/internal/sd/sdlog"
)

// Kind is a function's SafeDispatch classification.
type Kind int

const (
	BlackListed Kind = iota
	Virtual
	Static
)

func (k Kind) String() string {
	switch k {
	case BlackListed:
		return "blacklisted"
	case Virtual:
		return "virtual"
	case Static:
		return "static"
	default:
		return "unknown"
	}
}

// Flag is one of the diagnostic flags a FunctionRecord can carry.
type Flag int

const (
	NoCaller Flag = iota
	NoReturn
	External
)

// Record is one per-function entry produced by the Assigner (spec.md §3's
// FunctionRecord).
type Record struct {
	Name  string
	Kind  Kind
	IDs   []uint64
	TypeID    uint32
	HasTypeID bool
	ExtraIDs  map[uint64]bool
	Flags     map[Flag]bool
}

func newRecord(name string, kind Kind) *Record {
	return &Record{Name: name, Kind: kind, ExtraIDs: map[uint64]bool{}, Flags: map[Flag]bool{}}
}

// itaniumConstructorSuffixes excludes complete/base-object/allocating
// constructors from virtual classification, matching
// SafeDispatchReturnAddressPass.cpp's itaniumConstructorTokens.
var itaniumConstructorSuffixes = []string{"C0Ev", "C1Ev", "C2Ev"}

func isBlackListed(name string) bool {
	return strings.HasPrefix(name, "__") ||
		strings.HasPrefix(name, "llvm.") ||
		name == "_Znwm" ||
		name == "main" ||
		strings.HasPrefix(name, "_GLOBAL_")
}

func isVirtualCandidate(name string, c cha.Info) bool {
	if !strings.HasPrefix(name, "_Z") {
		return false
	}
	for _, suffix := range itaniumConstructorSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	if strings.HasPrefix(name, "_ZTh") {
		return true
	}
	return len(c.GetFunctionID(name)) > 0
}

// thunkTarget recovers the underlying _Z-prefixed symbol a non-virtual thunk
// (_ZTh...) was generated for, matching SDReturnAddress::processVirtualFunction's
// thunk-name surgery: drop the leading "_", then drop the "ZTh..." segment up
// to (and including) the first remaining underscore.
func thunkTarget(name string) (string, bool) {
	if !strings.HasPrefix(name, "_ZTh") {
		return "", false
	}
	s := name[1:] // drop_front(1)
	idx := strings.IndexByte(s, '_')
	if idx < 0 {
		return "", false
	}
	return "_Z" + s[idx+1:], true
}

// Assigner runs the Function-ID Assigner once per module.
type Assigner struct {
	Encoder *encode.Encoder
}

// NewAssigner creates an Assigner sharing enc with the Call-Site Analyzer
// (address-taken functions and indirect call sites must agree on type-IDs).
func NewAssigner(enc *encode.Encoder) *Assigner {
	return &Assigner{Encoder: enc}
}

// Result is the Assigner's output: per-function records, the metadata table
// recording them for the Return-Check Injector, and a name->canonical-ID map
// (FunctionIDMap in the original) used by the Call-Site Analyzer to resolve
// static callees to their target ID.
type Result struct {
	Records      map[string]*Record
	Metadata     *metadata.Table
	FunctionIDMap map[string]uint64
}

// Assign classifies every function in mod and assigns IDs. chaInfo must have
// already had BuildFunctionInfo called (spec §9: CHA -> B is load-bearing).
func Assign(mod *ir.Module, chaInfo cha.Info, enc *encode.Encoder) *Result {
	res := &Result{
		Records:       make(map[string]*Record),
		Metadata:      metadata.New(),
		FunctionIDMap: make(map[string]uint64),
	}

	called := make(map[string]bool)
	for _, f := range mod.Funcs {
		for _, c := range f.Calls {
			if c.Callee != "" {
				called[c.Callee] = true
			}
		}
	}

	nextStaticID := chaInfo.GetMaxID() + 1
	for _, f := range mod.Funcs {
		rec := classify(f, chaInfo, enc, &nextStaticID, res.FunctionIDMap)
		if rec.Kind != BlackListed {
			if f.Returns == 0 {
				rec.Flags[NoReturn] = true
			}
			if f.ExternalLinkage || f.ExternalWeak {
				rec.Flags[External] = true
			}
			if !called[f.Name] {
				rec.Flags[NoCaller] = true
			}
		}
		res.Records[f.Name] = rec
		emitMetadata(res.Metadata, rec)
	}
	return res
}

func classify(f *ir.Function, chaInfo cha.Info, enc *encode.Encoder, nextStaticID *uint64, idMap map[string]uint64) *Record {
	switch {
	case isBlackListed(f.Name):
		return newRecord(f.Name, BlackListed)

	case isVirtualCandidate(f.Name, chaInfo):
		rec := newRecord(f.Name, Virtual)
		ids := chaInfo.GetFunctionID(f.Name)
		if len(ids) == 0 {
			if target, ok := thunkTarget(f.Name); ok {
				ids = chaInfo.GetFunctionID(target)
				if len(ids) == 0 {
					sdlog.Errs("thunk conversion failed: %s -> %s", f.Name, target)
				}
			} else {
				sdlog.Errs("virtual function without ID: %s", f.Name)
			}
		}
		if len(ids) == 0 {
			// No checks will be generated for this function (spec §7).
			return rec
		}
		rec.IDs = ids
		idMap[f.Name] = ids[0]
		if f.AddressTaken {
			id := enc.TypeID(f.Sig)
			rec.TypeID, rec.HasTypeID = id, true
			rec.ExtraIDs[uint64(id)] = true
			rec.ExtraIDs[metadata.UnknownID] = true
		}
		return rec

	default:
		// isStaticFunction is total by construction: every function that is
		// neither blacklisted nor virtual is static. This branch can never
		// fall through to an "unknown class" condition; spec §7's fatal case
		// describes a classifier that is NOT total by construction, which
		// this one deliberately is (see spec §4.B).
		rec := newRecord(f.Name, Static)
		id := *nextStaticID
		*nextStaticID++
		rec.IDs = []uint64{id}
		idMap[f.Name] = id
		if f.AddressTaken {
			tid := enc.TypeID(f.Sig)
			rec.TypeID, rec.HasTypeID = tid, true
			rec.ExtraIDs[uint64(tid)] = true
			rec.ExtraIDs[metadata.UnknownID] = true
		}
		return rec
	}
}

func emitMetadata(t *metadata.Table, rec *Record) {
	switch rec.Kind {
	case BlackListed:
		t.Add(metadata.FuncInfoBlacklistPrefix+rec.Name, metadata.Join(rec.Name))

	case Virtual:
		if len(rec.IDs) == 0 {
			return
		}
		fields := []string{rec.Name, uitoa(uint64(len(rec.IDs)))}
		for _, id := range rec.IDs {
			fields = append(fields, uitoa(id))
		}
		if rec.HasTypeID {
			fields = append(fields, uitoa(uint64(rec.TypeID)))
		}
		t.Add(metadata.FuncInfoVirtualPrefix+rec.Name, metadata.Join(fields...))

	case Static:
		fields := []string{rec.Name, uitoa(rec.IDs[0])}
		if rec.HasTypeID {
			fields = append(fields, uitoa(uint64(rec.TypeID)))
		}
		t.Add(metadata.FuncInfoNormalPrefix+rec.Name, metadata.Join(fields...))
	}

	if rec.Kind != BlackListed && len(rec.Flags) > 0 {
		fields := []string{rec.Name}
		for _, fl := range []Flag{NoCaller, NoReturn, External} {
			if rec.Flags[fl] {
				fields = append(fields, fl.String())
			}
		}
		if len(fields) > 1 {
			t.Add(metadata.FuncInfoFlagsPrefix+rec.Name, metadata.Join(fields...))
		}
	}

	if len(rec.ExtraIDs) > 0 {
		ids := make([]uint64, 0, len(rec.ExtraIDs))
		for id := range rec.ExtraIDs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		fields := []string{rec.Name}
		for _, id := range ids {
			fields = append(fields, uitoa(id))
		}
		t.Add(metadata.FuncInfoExtraIDsPrefix+rec.Name, metadata.Join(fields...))
	}
}

func (f Flag) String() string {
	switch f {
	case NoCaller:
		return "nocaller"
	case NoReturn:
		return "noreturn"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
