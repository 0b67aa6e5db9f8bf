// Package sdfwalk compiles scene descriptions written in a small statement
// language into GLSL fragment shaders that raymarch signed distance fields.
//
// Statements are parsed by package scenelang and interpreted into a typed IR
// where every node carries the [Sort] of value it produces: plain geometry
// distances, opaque colored shapes or transparent colored volumes. The IR is
// then lowered to GLSL with hygienic local names through package glbuild.
package sdfwalk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soypat/sdfwalk/glbuild"
)

// Sort is the kind of value an IR node evaluates to.
type Sort uint8

const (
	// SortGeometry nodes evaluate to a float signed distance.
	SortGeometry Sort = iota
	// SortOpaque nodes evaluate to a vec4 holding RGB color and distance.
	SortOpaque
	// SortTransparent nodes evaluate to a vec4 holding RGB absorption and distance.
	SortTransparent
)

func (s Sort) String() string {
	switch s {
	case SortGeometry:
		return "geometry"
	case SortOpaque:
		return "opaque"
	case SortTransparent:
		return "transparent"
	}
	return "Sort(" + fmt.Sprint(uint8(s)) + ")"
}

// GLType returns the GLSL type nodes of this sort evaluate to.
func (s Sort) GLType() string {
	if s == SortGeometry {
		return "float"
	}
	return "vec4"
}

// prefix is prepended to combinator names to select the sort's overload.
func (s Sort) prefix() string {
	switch s {
	case SortOpaque:
		return "csd_"
	case SortTransparent:
		return "tsd_"
	}
	return "sd_"
}

// identity returns the GLSL literal folding op over no items evaluates to.
func (s Sort) identity(op FoldOp) string {
	if op == OpIntersection {
		if s == SortGeometry {
			return "0.0"
		}
		return "vec4(0.0)"
	}
	if s == SortGeometry {
		return "INFINITY"
	}
	return "vec4(0.0, 0.0, 0.0, INFINITY)"
}

// FoldOp is a binary combination folded left to right over a list of same-sort nodes.
type FoldOp uint8

const (
	OpUnion FoldOp = iota
	OpIntersection
	OpDifference
	OpSmoothUnion
)

var foldSuffix = [...]string{
	OpUnion:        "union",
	OpIntersection: "isect",
	OpDifference:   "diff",
	OpSmoothUnion:  "smooth_union",
}

func (op FoldOp) String() string {
	if int(op) < len(foldSuffix) {
		return foldSuffix[op]
	}
	return "FoldOp(" + fmt.Sprint(uint8(op)) + ")"
}

// FuncName returns the GLSL function implementing op for sort s.
func (op FoldOp) FuncName(s Sort) string {
	return s.prefix() + op.String()
}

var (
	// ErrWrongSort is returned for statements that can't produce the requested sort,
	// such as an opaque shape inside geometry.
	ErrWrongSort = errors.New("statement not valid for this sort")
	// ErrArity is returned when a statement has the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")
	// ErrPrimitiveBody is returned for named primitives that have a body.
	ErrPrimitiveBody = errors.New("primitive can't have a body")
	// ErrTopLevelOnly is returned for definitions and camera blocks nested inside other statements.
	ErrTopLevelOnly = errors.New("only allowed at top level")
	// ErrUndefinedBinding is returned for $name references with no enclosing let.
	ErrUndefinedBinding = errors.New("undefined binding")
	// ErrDefinition is returned for malformed define_geometry, define_opaque or define_transparent statements.
	ErrDefinition = errors.New("invalid definition")
)

// StatementError reports a statement that could not be interpreted. Path lists
// the names of the enclosing statements, outermost first.
type StatementError struct {
	Path []string
	Name string
	Sort Sort
	Err  error
}

func (e *StatementError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Sort.String())
	sb.WriteString(" statement ")
	for _, p := range e.Path {
		sb.WriteString(p)
		sb.WriteString(" > ")
	}
	sb.WriteString(e.Name)
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *StatementError) Unwrap() error { return e.Err }

// Context is the code generation state threaded down the IR during lowering.
type Context struct {
	// Pos is the GLSL expression holding the position being evaluated.
	Pos  string
	vars map[string]string
}

// NewContext returns a context evaluating at the GLSL variable pos.
func NewContext(pos string) Context { return Context{Pos: pos} }

func (c Context) withPos(pos string) Context {
	c.Pos = pos
	return c
}

func (c Context) bind(name, ident string) Context {
	vars := make(map[string]string, len(c.vars)+1)
	for k, v := range c.vars {
		vars[k] = v
	}
	vars[name] = ident
	c.vars = vars
	return c
}

// expand substitutes $ with the current position and $name with its let binding.
func (c Context) expand(tmpl string) string {
	if strings.IndexByte(tmpl, '$') < 0 {
		return tmpl
	}
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '$' {
			sb.WriteByte(tmpl[i])
			continue
		}
		name := identAt(tmpl[i+1:])
		i += len(name)
		if name == "" {
			sb.WriteString(c.Pos)
		} else if ident, ok := c.vars[name]; ok {
			sb.WriteString(ident)
		} else {
			sb.WriteString(name)
		}
	}
	return sb.String()
}

func (c Context) expandAll(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = c.expand(arg)
	}
	return out
}

// templateRefs returns the binding names referenced as $name in tmpl.
func templateRefs(tmpl string) (refs []string) {
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '$' {
			continue
		}
		name := identAt(tmpl[i+1:])
		if name != "" {
			refs = append(refs, name)
			i += len(name)
		}
	}
	return refs
}

func identAt(s string) string {
	n := 0
	for n < len(s) {
		c := s[n]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || n > 0 && c >= '0' && c <= '9' {
			n++
			continue
		}
		break
	}
	return s[:n]
}

func appendCall(b []byte, name string, args ...string) []byte {
	return glbuild.AppendCallStrings(b, name, args...)
}
