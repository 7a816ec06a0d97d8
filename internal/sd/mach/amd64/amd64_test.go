package amd64

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"github.com/TeamVault/rhoFEM/internal/sd/mach"
)

func TestGinsnopEncodesAsRealNOP(t *testing.T) {
	pp := &mach.Progs{}
	p := ginsnop(pp, 0xCAFEBABE)

	if len(p.Bytes) != nopLen {
		t.Fatalf("len(Bytes) = %d, want %d", len(p.Bytes), nopLen)
	}
	if p.ImmOffset != 3 || p.ImmWidth != 4 {
		t.Fatalf("ImmOffset/ImmWidth = %d/%d, want 3/4", p.ImmOffset, p.ImmWidth)
	}

	inst, err := x86asm.Decode(p.Bytes, 64)
	if err != nil {
		t.Fatalf("x86asm.Decode failed on emitted NOP bytes: %v", err)
	}
	if inst.Len != nopLen {
		t.Errorf("decoded instruction length = %d, want %d", inst.Len, nopLen)
	}
	if inst.Op != x86asm.NOP {
		t.Errorf("decoded opcode = %v, want NOP", inst.Op)
	}

	mem, ok := inst.Args[0].(x86asm.Mem)
	if !ok {
		t.Fatalf("operand 0 = %T, want x86asm.Mem", inst.Args[0])
	}
	if mem.Disp != 0xCAFEBABE {
		t.Errorf("decoded displacement = %#x, want %#x", mem.Disp, 0xCAFEBABE)
	}
}

func TestTwoLandingPadsPlaceSecondImmAtOffsetTen(t *testing.T) {
	pp := &mach.Progs{}
	ginsnop(pp, 1)
	ginsnop(pp, 2)

	bytes := pp.Bytes()
	if len(bytes) != 2*nopLen {
		t.Fatalf("len(Bytes()) = %d, want %d", len(bytes), 2*nopLen)
	}
	// spec.md fixes the second landing-pad immediate at byte offset +10
	// from the return address (3 + 7-byte first NOP).
	if bytes[10] != 2 || bytes[11] != 0 || bytes[12] != 0 || bytes[13] != 0 {
		t.Errorf("second immediate at offset 10 = % x, want 02 00 00 00", bytes[10:14])
	}
}

func TestArchRegistered(t *testing.T) {
	arch, ok := mach.Lookup("amd64")
	if !ok {
		t.Fatal("amd64 arch not registered")
	}
	if arch.Pad.Ginsnop1 == nil || arch.Pad.Ginsnop2 == nil {
		t.Fatal("amd64 arch missing landing-pad hooks")
	}
}
