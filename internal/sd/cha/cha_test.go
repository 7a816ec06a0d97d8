package cha

import (
	"reflect"
	"testing"
)

func TestFixtureGetFunctionID(t *testing.T) {
	f := NewFixture(map[string][]uint64{
		"_ZN1B1gEv": {3},
		"_ZN1D1gEv": {3, 4},
	}, 4)

	tests := []struct {
		name string
		want []uint64
	}{
		{"_ZN1B1gEv", []uint64{3}},
		{"_ZN1D1gEv", []uint64{3, 4}},
		{"_ZN1Unknown1xEv", nil},
	}
	for _, tt := range tests {
		got := f.GetFunctionID(tt.name)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("GetFunctionID(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFixtureGetMaxID(t *testing.T) {
	f := NewFixture(nil, 42)
	if f.GetMaxID() != 42 {
		t.Errorf("GetMaxID() = %d, want 42", f.GetMaxID())
	}
}

func TestFixtureBuiltFlag(t *testing.T) {
	f := NewFixture(nil, 0)
	if f.Built() {
		t.Fatal("Built() true before BuildFunctionInfo called")
	}
	f.BuildFunctionInfo()
	if !f.Built() {
		t.Fatal("Built() false after BuildFunctionInfo called")
	}
}

func TestFixtureIsolatesCallerSlice(t *testing.T) {
	ids := []uint64{1, 2}
	f := NewFixture(map[string][]uint64{"foo": ids}, 2)
	got := f.GetFunctionID("foo")
	got[0] = 99
	again := f.GetFunctionID("foo")
	if again[0] == 99 {
		t.Error("mutating a returned ID slice leaked into the Fixture's internal state")
	}
}
