// Package arm64 registers a landing pad for arm64.
//
// arm64's fixed-width 4-byte instruction encoding cannot place a 4-byte
// immediate at the same +3/+10 byte offsets amd64's variable-length NOP
// achieves (spec.md's offsets are defined relative to a CISC return
// address). This stub registers the architecture so the dispatch table in
// mach.Lookup is complete, but its codegen is documented as unimplemented
// rather than guessed at: spec.md itself scopes offset derivation to the
// x86 landing pad (§4.D's worked example), and no other example in the
// pack includes an arm64 backend to ground an alternative encoding against.
package arm64

import "github.com/TeamVault/rhoFEM/internal/sd/mach"

func init() {
	mach.Register("arm64", func() mach.Arch {
		return mach.Arch{
			Name: "arm64",
			Pad: mach.LandingPad{
				Ginsnop1: unimplemented,
				Ginsnop2: unimplemented,
			},
		}
	})
}

func unimplemented(pp *mach.Progs, imm uint32) *mach.Prog {
	panic("mach/arm64: landing-pad codegen not implemented for this architecture")
}
