package ir

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/tools/txtar"

	"github.com/TeamVault/rhoFEM/internal/sd/encode"
)

// LoadTxtar parses a module fixture out of a txtar archive (the same archive
// format cmd/go's own script tests use for testdata, referenced directly by
// the teacher's vcs_test.go). Each archive file is one function: the file
// name is the function's mangled name, and its body is a small line-
// oriented DSL:
//
//	addr-taken                       mark the function's address as taken
//	external                         external/weak linkage
//	declaration                      function has no body (a declaration)
//	returns N                        number of return instructions (default 1)
//	param <type>                     one parameter, in order (repeatable)
//	return <type>                    return type (default void)
//	call static <callee> @<loc>      a direct static call
//	call virtual @<loc> targets=a,b,c    a checked_vptr call with CHA's target-ID set
//	call indirect @<loc> params=t1;t2 return=<type>   an unresolved function-pointer call
//	call tail <callee> @<loc>        a tail call
//
// <type> is one of: void, i1, i8, i16, i32, i64, half, float, double, fp80,
// struct, array, other, or ptr(<type>) for a pointer to <type>.
// <loc> is file:line:col, or just an integer for a pseudo location.
func LoadTxtar(data []byte) (*Module, error) {
	arc := txtar.Parse(data)
	mod := NewModule()
	for _, file := range arc.Files {
		fn, err := parseFunction(file.Name, string(file.Data))
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", file.Name, err)
		}
		mod.AddFunc(fn)
	}
	return mod, nil
}

func parseFunction(name, body string) (*Function, error) {
	fn := &Function{Name: name, Returns: 1}
	for _, rawLine := range strings.Split(body, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "addr-taken":
			fn.AddressTaken = true
		case "external":
			fn.ExternalLinkage = true
		case "declaration":
			fn.Declaration = true
		case "returns":
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("returns: %w", err)
			}
			fn.Returns = n
		case "param":
			t, err := parseType(fields[1])
			if err != nil {
				return nil, err
			}
			fn.Sig.Params = append(fn.Sig.Params, t)
		case "return":
			t, err := parseType(fields[1])
			if err != nil {
				return nil, err
			}
			fn.Sig.Return = t
		case "call":
			call, err := parseCall(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("call: %w", err)
			}
			fn.Calls = append(fn.Calls, call)
		default:
			return nil, fmt.Errorf("unrecognized directive %q", fields[0])
		}
	}
	return fn, nil
}

func parseCall(fields []string) (Call, error) {
	if len(fields) == 0 {
		return Call{}, fmt.Errorf("missing call kind")
	}
	kindTok := fields[0]
	rest := fields[1:]

	var c Call
	switch kindTok {
	case "static":
		if len(rest) < 1 {
			return c, fmt.Errorf("static call missing callee")
		}
		c.Kind = CallStatic
		c.Callee = rest[0]
		rest = rest[1:]
	case "tail":
		if len(rest) < 1 {
			return c, fmt.Errorf("tail call missing callee")
		}
		c.Kind = CallTail
		c.Callee = rest[0]
		rest = rest[1:]
	case "virtual":
		c.Kind = CallVirtual
		c.CheckedVptr = true
	case "indirect":
		c.Kind = CallIndirect
	default:
		return c, fmt.Errorf("unknown call kind %q", kindTok)
	}

	for _, f := range rest {
		switch {
		case strings.HasPrefix(f, "@"):
			loc, err := parseLoc(f[1:])
			if err != nil {
				return c, err
			}
			c.Loc = loc
		case strings.HasPrefix(f, "targets="):
			ids, err := parseUintList(strings.TrimPrefix(f, "targets="))
			if err != nil {
				return c, err
			}
			c.VirtualTargets = ids
		case strings.HasPrefix(f, "params="):
			for _, tt := range strings.Split(strings.TrimPrefix(f, "params="), ";") {
				if tt == "" {
					continue
				}
				t, err := parseType(tt)
				if err != nil {
					return c, err
				}
				c.Sig.Params = append(c.Sig.Params, t)
			}
		case strings.HasPrefix(f, "return="):
			t, err := parseType(strings.TrimPrefix(f, "return="))
			if err != nil {
				return c, err
			}
			c.Sig.Return = t
		}
	}
	return c, nil
}

func parseLoc(s string) (SourceLoc, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return SourceLoc{Line: n, Pseudo: true}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return SourceLoc{}, fmt.Errorf("bad location %q, want file:line:col", s)
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil {
		return SourceLoc{}, fmt.Errorf("bad line in %q: %w", s, err)
	}
	col, err := strconv.Atoi(parts[2])
	if err != nil {
		return SourceLoc{}, fmt.Errorf("bad col in %q: %w", s, err)
	}
	return SourceLoc{File: parts[0], Line: line, Col: col}, nil
}

func parseUintList(s string) ([]uint64, error) {
	var out []uint64
	for _, tok := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", tok, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseType(s string) (encode.Type, error) {
	if strings.HasPrefix(s, "ptr(") && strings.HasSuffix(s, ")") {
		inner, err := parseType(s[len("ptr(") : len(s)-1])
		if err != nil {
			return encode.Type{}, err
		}
		elem := inner
		return encode.Type{Kind: encode.Pointer, Elem: &elem}, nil
	}
	switch s {
	case "void":
		return encode.Type{Kind: encode.Void}, nil
	case "i1":
		return encode.Type{Kind: encode.Int1}, nil
	case "i8":
		return encode.Type{Kind: encode.Int8}, nil
	case "i16":
		return encode.Type{Kind: encode.Int16}, nil
	case "i32":
		return encode.Type{Kind: encode.Int32}, nil
	case "i64":
		return encode.Type{Kind: encode.IntBig}, nil
	case "half":
		return encode.Type{Kind: encode.Half}, nil
	case "float":
		return encode.Type{Kind: encode.Float}, nil
	case "double":
		return encode.Type{Kind: encode.Double}, nil
	case "fp80":
		return encode.Type{Kind: encode.ExtFloat}, nil
	case "ptr":
		return encode.Type{Kind: encode.Pointer}, nil
	case "struct":
		return encode.Type{Kind: encode.Struct}, nil
	case "array":
		return encode.Type{Kind: encode.Array}, nil
	case "other":
		return encode.Type{Kind: encode.Other}, nil
	default:
		return encode.Type{}, fmt.Errorf("unknown type %q", s)
	}
}
