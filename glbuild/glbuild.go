package glbuild

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// VersionStr is the GLSL version directive the embedded assets are written against.
const VersionStr = "#version 460 core\n"

// Param is a single typed parameter of a generated GLSL function.
type Param struct {
	Type string
	Name string
}

// Programmer accumulates generated GLSL functions for a single compilation.
// It owns the counter from which hygienic definition names are allocated so
// names are unique across every function it generates. A Programmer must not be
// shared between compilations.
type Programmer struct {
	uniq    int
	chunks  [][]byte
	names   map[uint64]uint64
	scratch []byte
}

// NewProgrammer returns a ready to use Programmer with its name counter at zero.
func NewProgrammer() *Programmer {
	return &Programmer{
		names:   make(map[uint64]uint64),
		scratch: make([]byte, 0, 1024),
	}
}

// Function is a GLSL function under construction. Definitions are accumulated
// with [Function.GenDefinition] and the function is finalized with [Function.Return].
type Function struct {
	prog   *Programmer
	ret    string
	name   string
	params []Param
	defs   []byte
	done   bool
}

// AddFunction starts a new function that will be appended to p once
// [Function.Return] is called.
func (p *Programmer) AddFunction(ret, name string, params []Param) *Function {
	return &Function{
		prog:   p,
		ret:    ret,
		name:   name,
		params: append([]Param(nil), params...),
	}
}

// Name returns the GLSL name of the function.
func (f *Function) Name() string { return f.name }

// GenDefinition declares a local variable of type typ bound to expr and returns
// its name. Names are of the form def_<n> and are never reused within the
// Programmer, so nested or sibling subtrees can't shadow one another.
func (f *Function) GenDefinition(typ string, expr []byte) string {
	ident := f.prog.nextName()
	f.defs = append(f.defs, '\t')
	f.defs = append(f.defs, typ...)
	f.defs = append(f.defs, ' ')
	f.defs = append(f.defs, ident...)
	f.defs = append(f.defs, " = "...)
	f.defs = append(f.defs, expr...)
	f.defs = append(f.defs, ";\n"...)
	return ident
}

// Return finalizes the function with expr as the returned value. Functions
// sharing a name with an already returned function are skipped if their
// source is identical and rejected otherwise.
func (f *Function) Return(expr []byte) error {
	if f.done {
		return errors.New("function " + f.name + " already returned")
	}
	f.done = true
	p := f.prog
	src := f.appendSource(p.scratch[:0], expr)
	p.scratch = src
	nameHash := hash([]byte(f.name), 0)
	srcHash := hash(src, nameHash)
	gotHash, conflict := p.names[nameHash]
	if conflict {
		if gotHash == srcHash {
			return nil // Identical function already written.
		}
		return fmt.Errorf("duplicate function name %q with distinct body:\n%s", f.name, src)
	}
	p.names[nameHash] = srcHash
	p.chunks = append(p.chunks, append([]byte(nil), src...))
	return nil
}

func (f *Function) appendSource(b, expr []byte) []byte {
	b = append(b, f.ret...)
	b = append(b, ' ')
	b = append(b, f.name...)
	b = append(b, '(')
	for i, param := range f.params {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, param.Type...)
		b = append(b, ' ')
		b = append(b, param.Name...)
	}
	b = append(b, ") {\n"...)
	b = append(b, f.defs...)
	b = append(b, "\treturn "...)
	b = append(b, expr...)
	b = append(b, ";\n}\n"...)
	return b
}

// Define records a preprocessor define in insertion order along with the functions.
func (p *Programmer) Define(alias, replace string) {
	p.chunks = append(p.chunks, AppendDefineDecl(nil, alias, replace))
}

// AppendSource appends all generated chunks in insertion order to b.
func (p *Programmer) AppendSource(b []byte) []byte {
	for _, chunk := range p.chunks {
		b = append(b, chunk...)
	}
	return b
}

// WriteTo writes all generated chunks in insertion order to w. Implements [io.WriterTo].
func (p *Programmer) WriteTo(w io.Writer) (n int64, err error) {
	for _, chunk := range p.chunks {
		ngot, err := w.Write(chunk)
		n += int64(ngot)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Definitions returns how many definition names have been allocated so far.
func (p *Programmer) Definitions() int { return p.uniq }

func (p *Programmer) nextName() string {
	b := strconv.AppendInt(append(p.scratch[:0], "def_"...), int64(p.uniq), 10)
	p.uniq++
	return string(b)
}

// AppendCall appends a GLSL function call expression name(args[0], args[1], ...).
func AppendCall(b []byte, name string, args ...[]byte) []byte {
	b = append(b, name...)
	b = append(b, '(')
	for i, arg := range args {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, arg...)
	}
	b = append(b, ')')
	return b
}

// AppendCallStrings is like [AppendCall] with string arguments.
func AppendCallStrings(b []byte, name string, args ...string) []byte {
	bargs := make([][]byte, len(args))
	for i, arg := range args {
		bargs[i] = []byte(arg)
	}
	return AppendCall(b, name, bargs...)
}

func AppendDefineDecl(b []byte, aliasToDefine, aliasReplace string) []byte {
	b = append(b, "#define "...)
	b = append(b, aliasToDefine...)
	if aliasReplace != "" {
		b = append(b, ' ')
		b = append(b, aliasReplace...)
	}
	b = append(b, '\n')
	return b
}

// IsIdent reports whether s is a valid GLSL identifier.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isAlpha := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
		isDigit := c >= '0' && c <= '9'
		if !isAlpha && (i == 0 || !isDigit) {
			return false
		}
	}
	return true
}

func hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}
