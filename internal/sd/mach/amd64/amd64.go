// Package amd64 registers the amd64 landing pad: two back-to-back 7-byte
// NOPs encoding 0F 1F 80 <imm32>, chosen so the first immediate lands at
// byte offset +3 from the return address and the second at +10 — the exact
// offsets spec.md §4.D/§6 fix for a landing pad's first and second slot.
//
// Grounded on the NOP-emission shape of
// teacher_src/cmd_local/compile/internal/riscv64/gsubr.go's ginsnop, and on
// mach.Arch/mach.Register as the generalized form of gc.Arch's Ginsnop hook
// and cmd/compile/main.go's archInits dispatch table.
package amd64

import (
	"encoding/binary"

	"github.com/TeamVault/rhoFEM/internal/sd/mach"
)

// nopLen is the length in bytes of one 0F 1F 80 <imm32> NOP.
const nopLen = 7

func ginsnop(pp *mach.Progs, imm uint32) *mach.Prog {
	buf := make([]byte, nopLen)
	buf[0], buf[1], buf[2] = 0x0F, 0x1F, 0x80
	binary.LittleEndian.PutUint32(buf[3:], imm)
	return pp.Append(&mach.Prog{Bytes: buf, ImmOffset: 3, ImmWidth: 4})
}

func init() {
	mach.Register("amd64", func() mach.Arch {
		return mach.Arch{
			Name: "amd64",
			Pad: mach.LandingPad{
				Ginsnop1: ginsnop,
				Ginsnop2: ginsnop,
			},
		}
	})
}
