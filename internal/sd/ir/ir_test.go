package ir

import "testing"

func TestSourceLocKey(t *testing.T) {
	tests := []struct {
		name string
		loc  SourceLoc
		want string
	}{
		{"real location", SourceLoc{File: "main.cpp", Line: 12, Col: 3}, "main.cpp:12:3"},
		{"pseudo location", SourceLoc{Line: 7, Pseudo: true}, "pseudo:7"},
	}
	for _, tt := range tests {
		if got := tt.loc.Key(); got != tt.want {
			t.Errorf("%s: Key() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestModuleAddFuncAndLookup(t *testing.T) {
	m := NewModule()
	m.AddFunc(&Function{Name: "_ZN1B1gEv"})

	f, ok := m.Func("_ZN1B1gEv")
	if !ok || f.Name != "_ZN1B1gEv" {
		t.Fatalf("Func lookup failed: %+v, %v", f, ok)
	}
	if _, ok := m.Func("missing"); ok {
		t.Error("Func should report ok=false for an unknown name")
	}
	if len(m.Funcs) != 1 {
		t.Errorf("Funcs has %d entries, want 1", len(m.Funcs))
	}
}

func TestCallKindString(t *testing.T) {
	tests := map[CallKind]string{
		CallStatic:   "static",
		CallVirtual:  "virtual",
		CallIndirect: "indirect",
		CallTail:     "tail",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
