// Package mach is the post-instruction-selection machine layer the
// Landing-Pad Materializer runs over: a generalized stand-in for
// cmd/compile's gc.Progs/obj.Prog pair and its per-architecture Arch struct
// (cmd_local/compile/internal/gc's Ginsnop hook), just enough to
// append encoded instructions after a call and read them back as bytes.
//
// Grounded on teacher_src/cmd_local/compile/internal/gc/go.go's Arch struct
// and archInits dispatch table, and on riscv64/gsubr.go's ginsnop as the
// shape a per-arch NOP builder takes.
package mach

// Prog is one machine instruction: its encoded bytes and, for instructions
// carrying an embedded landing-pad ID, the byte offset within Bytes where
// the 4-byte immediate starts (spec.md §4.E: "fixed offsets from the return
// address").
type Prog struct {
	Bytes       []byte
	ImmOffset   int // -1 if this Prog carries no embedded immediate
	ImmWidth    int
}

// Progs is the ordered instruction stream for one function, the same role
// gc.Progs plays for a single compiled function's machine code.
type Progs struct {
	List []*Prog
}

// Append adds p to the stream and returns it, mirroring gc.Progs.Prog's
// append-and-return idiom.
func (pp *Progs) Append(p *Prog) *Prog {
	pp.List = append(pp.List, p)
	return p
}

// Bytes concatenates every Prog's bytes into one contiguous instruction
// sequence, as the linker would emit for a function body.
func (pp *Progs) Bytes() []byte {
	var out []byte
	for _, p := range pp.List {
		out = append(out, p.Bytes...)
	}
	return out
}

// LandingPad describes the NOP sequence an Arch emits after a call
// instruction (spec.md §4.E): Ginsnop1 always runs; Ginsnop2 runs only when
// the call site needs a second immediate (a virtual call site, which
// carries both min and the range width max-min).
type LandingPad struct {
	Ginsnop1 func(pp *Progs, imm uint32) *Prog
	Ginsnop2 func(pp *Progs, imm uint32) *Prog
}

// Arch is one target architecture's landing-pad codegen, generalizing
// gc.Arch's Ginsnop/Ginsnopdefer function-pointer hooks to SafeDispatch's
// needs.
type Arch struct {
	Name string
	Pad  LandingPad
}

// archInits mirrors cmd/compile/main.go's archInits map literal, dispatching
// by GOARCH-style name to each arch's Init function.
var archInits = map[string]func() Arch{}

// Register adds an architecture to the dispatch table. Each arch's package
// calls this from an init function, the way amd64.Init/arm64.Init register
// themselves into cmd/compile's archInits via the main package's map
// literal (here decentralized to each package instead of listed by hand,
// since this module's arch list is just two members).
func Register(name string, initFn func() Arch) {
	archInits[name] = initFn
}

// Lookup returns the registered Arch for name, or ok=false if no package
// registered it.
func Lookup(name string) (Arch, bool) {
	initFn, ok := archInits[name]
	if !ok {
		return Arch{}, false
	}
	return initFn(), true
}
