// Package metadata implements the module-level named-metadata schema that is
// the narrow, named contract between the IR-level passes (Function-ID
// Assigner, Call-Site Analyzer) and the consumers that run later (Return-
// Check Injector, Landing-Pad Materializer). Section 3 of spec.md calls this
// out explicitly: "no IR pointers are persisted across passes" — everything
// that crosses the IR/machine boundary, or even just the B->D boundary
// within IR, goes through this table as comma-joined string tuples, the same
// way the original LLVM passes used named MDNode tuples
// (M->getNamedMetadata(...)).
package metadata

import (
	"sort"
	"strings"
)

// Well-known metadata names (spec.md §6 table). Function-scoped names are a
// prefix; the full key is Prefix+<mangled name>.
const (
	FuncInfoNormalPrefix    = "sd.funcinfo.normal/"
	FuncInfoVirtualPrefix   = "sd.funcinfo.virtual/"
	FuncInfoBlacklistPrefix = "sd.funcinfo.blacklist/"
	FuncInfoFlagsPrefix     = "sd.funcinfo.flags/"
	FuncInfoExtraIDsPrefix  = "sd.funcinfo.extraids/"

	ReturnVirtual = "sd.return.virtual"
	ReturnNormal  = "sd.return.normal"

	OutputHint   = "sd_output"
	FilenameHint = "sd_filename"
)

// MagicBit and UnknownID are part of the wire contract itself (spec.md
// §4.D/§6), not owned by either the producer (funcid) or the consumer
// (retcheck) of a function's check data, so they live here alongside the
// metadata names both packages read and write.
const (
	MagicBit  = 0x80000
	UnknownID = 0x7FFFF
)

// Table is an in-memory stand-in for Module::getNamedMetadata(...): a named
// list of string-tuple entries. Each named-metadata name maps to an ordered
// list of entries; entries are comma-joined tuples per the schema table in
// spec.md §6.
type Table struct {
	entries map[string][]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[string][]string)}
}

// Add appends entry (already comma-joined) under name.
func (t *Table) Add(name, entry string) {
	t.entries[name] = append(t.entries[name], entry)
}

// Get returns the entries stored under name, or nil if none were added.
func (t *Table) Get(name string) []string {
	return t.entries[name]
}

// Names returns every distinct metadata name present, sorted for
// deterministic iteration (the original walks M.named_metadata() whose order
// is not contract-relevant; we sort so tests are reproducible).
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FunctionSuffixed finds every entry stored under name+<anything>, for the
// FuncInfo*Prefix families where each function gets its own named-
// metadata entry (loadFunctionData in the original walks
// M.named_metadata() and matches by startswith(prefix)).
func (t *Table) FunctionSuffixed(prefix string) []string {
	var out []string
	for _, name := range t.Names() {
		if strings.HasPrefix(name, prefix) {
			out = append(out, t.entries[name]...)
		}
	}
	return out
}

// Join and Split are the tuple (de)serialization helpers every producer and
// consumer in this package tree uses, kept here so the comma-joined wire
// format has exactly one implementation.
func Join(fields ...string) string {
	return strings.Join(fields, ",")
}

func Split(entry string) []string {
	return strings.Split(entry, ",")
}
