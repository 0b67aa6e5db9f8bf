package sdfwalk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soypat/sdfwalk/camera"
	"github.com/soypat/sdfwalk/glbuild"
	"github.com/soypat/sdfwalk/glbuild/glsllib"
	"github.com/soypat/sdfwalk/scenelang"
)

// Names of the generated entrypoints the footer calls.
const (
	GeometryEntrypoint    = "map_geometry"
	TransparentEntrypoint = "map_transparent"
	// hasTransparentDefine is defined before the transparent entrypoint so the
	// footer only marches the transparent volume when a scene has one.
	hasTransparentDefine = "HAS_TRANSPARENT"
	// posParam names the position parameter of every generated function.
	posParam = "p"
)

var definitionSorts = map[string]Sort{
	"define_geometry":    SortGeometry,
	"define_opaque":      SortOpaque,
	"define_transparent": SortTransparent,
}

// Definition is a user defined function declared at the top level of a scene.
// It is compiled to a GLSL function taking Params followed by the position.
type Definition struct {
	Sort   Sort
	Name   string
	Params []glbuild.Param
	Body   Node
}

// SceneDesc is a compiled scene. It is not modified after it is returned.
type SceneDesc struct {
	// Vertex and Fragment are the complete shader sources.
	Vertex   string
	Fragment string
	// Camera is nil when the scene has no camera block or cameras were disabled.
	Camera *camera.Desc

	Definitions []Definition
	// Opaque is the union of every opaque top level statement.
	Opaque Node
	// Transparent is the union of every transparent top level statement. It has
	// no items when the scene has no transparent statements.
	Transparent *Fold
}

// HasTransparent reports whether the scene emits a transparent entrypoint.
func (sd *SceneDesc) HasTransparent() bool {
	return sd.Transparent != nil && len(sd.Transparent.Items) > 0
}

// Options configures scene compilation.
type Options struct {
	// DisableCamera ignores camera blocks. They are still checked to appear at
	// most once.
	DisableCamera bool
}

// Compile parses and compiles scene source with default options.
func Compile(src []byte) (*SceneDesc, error) {
	return Options{}.Compile(src)
}

// FromStatements compiles parsed statements with default options.
func FromStatements(stmts []scenelang.Statement) (*SceneDesc, error) {
	return Options{}.FromStatements(stmts)
}

// Compile parses and compiles scene source.
func (opts Options) Compile(src []byte) (*SceneDesc, error) {
	stmts, err := scenelang.Parse(src)
	if err != nil {
		return nil, err
	}
	return opts.FromStatements(stmts)
}

// FromStatements compiles top level statements into shader sources. Definitions
// may only refer to definitions declared before them.
func (opts Options) FromStatements(stmts []scenelang.Statement) (*SceneDesc, error) {
	sd := &SceneDesc{
		Vertex:      string(glsllib.Vertex()),
		Transparent: &Fold{sort: SortTransparent, Op: OpUnion},
	}
	prog := glbuild.NewProgrammer()
	defs := make(map[string]Sort)
	var opaque []Node
	var seenCamera bool
	for _, stmt := range stmts {
		if sort, ok := definitionSorts[stmt.Name]; ok {
			def, err := compileDefinition(prog, defs, sort, stmt)
			if err != nil {
				return nil, err
			}
			defs[def.Name] = def.Sort
			sd.Definitions = append(sd.Definitions, def)
			continue
		}
		if stmt.Name == "camera" {
			if seenCamera {
				return nil, &camera.Error{Statement: stmt.Name, Err: camera.ErrDuplicateCamera}
			}
			seenCamera = true
			if opts.DisableCamera {
				continue
			}
			cam, err := camera.New(stmt)
			if err != nil {
				return nil, err
			}
			sd.Camera = cam
			continue
		}
		node, err := route(defs, stmt)
		if err != nil {
			return nil, err
		}
		if node.Sort() == SortTransparent {
			sd.Transparent.Items = append(sd.Transparent.Items, node)
		} else {
			opaque = append(opaque, node)
		}
	}
	sd.Opaque = &Fold{sort: SortOpaque, Op: OpUnion, Items: opaque}

	params := []glbuild.Param{{Type: "vec3", Name: posParam}}
	fn := prog.AddFunction("vec4", GeometryEntrypoint, params)
	if err := fn.Return(sd.Opaque.AppendExpr(nil, NewContext(posParam), fn)); err != nil {
		return nil, err
	}
	if sd.HasTransparent() {
		prog.Define(hasTransparentDefine, "")
		fn = prog.AddFunction("vec4", TransparentEntrypoint, params)
		if err := fn.Return(sd.Transparent.AppendExpr(nil, NewContext(posParam), fn)); err != nil {
			return nil, err
		}
	}

	var frag []byte
	frag = append(frag, glsllib.Header()...)
	frag = append(frag, glsllib.Library()...)
	frag = prog.AppendSource(frag)
	frag = append(frag, glsllib.Footer()...)
	sd.Fragment = string(frag)
	return sd, nil
}

// route interprets a residual top level statement. Statements valid as opaque
// go to the opaque union, including those also valid as transparent. The rest
// must be valid as transparent. Trying transparent first routes the same way
// since ambiguous statements default to opaque either way.
func route(defs map[string]Sort, stmt scenelang.Statement) (Node, error) {
	opaque := &Visitor{sort: SortOpaque, defs: defs}
	node, errOpaque := opaque.Apply(stmt)
	if errOpaque == nil {
		return node, nil
	}
	transparent := opaque.withSort(SortTransparent)
	node, errTransparent := transparent.Apply(stmt)
	if errTransparent == nil {
		return node, nil
	}
	if errors.Is(errOpaque, ErrWrongSort) {
		return nil, errTransparent
	}
	return nil, errOpaque
}

func compileDefinition(prog *glbuild.Programmer, defs map[string]Sort, sort Sort, stmt scenelang.Statement) (def Definition, err error) {
	fail := func(err error) (Definition, error) {
		return Definition{}, &StatementError{Name: stmt.Name, Sort: sort, Err: err}
	}
	if len(stmt.Args) == 0 {
		return fail(fmt.Errorf("%w: missing name", ErrDefinition))
	}
	def = Definition{Sort: sort, Name: strings.TrimSpace(stmt.Args[0])}
	if err := checkDefinitionIdent(def.Name); err != nil {
		return fail(err)
	} else if _, dup := defs[def.Name]; dup {
		return fail(fmt.Errorf("%w: %s declared twice", ErrDefinition, def.Name))
	}
	seen := make(map[string]bool)
	for _, arg := range stmt.Args[1:] {
		param, err := parseParam(arg)
		if err != nil {
			return fail(err)
		} else if seen[param.Name] {
			return fail(fmt.Errorf("%w: duplicate parameter %s", ErrDefinition, param.Name))
		}
		seen[param.Name] = true
		def.Params = append(def.Params, param)
	}

	v := &Visitor{sort: sort, defs: defs}
	items, err := v.applyBody(stmt)
	if err != nil {
		var serr *StatementError
		if errors.As(err, &serr) {
			serr.Path = append([]string{def.Name}, serr.Path...)
		}
		return Definition{}, err
	}
	def.Body = &Fold{sort: sort, Op: OpUnion, Items: items}

	params := append(def.Params[:len(def.Params):len(def.Params)], glbuild.Param{Type: "vec3", Name: posParam})
	fn := prog.AddFunction(sort.GLType(), def.Name, params)
	if err := fn.Return(def.Body.AppendExpr(nil, NewContext(posParam), fn)); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrDefinition, err))
	}
	return def, nil
}

// parseParam parses a definition parameter written as "name" or "type name".
func parseParam(arg string) (glbuild.Param, error) {
	fields := strings.Fields(arg)
	var param glbuild.Param
	switch len(fields) {
	case 1:
		param = glbuild.Param{Type: "float", Name: fields[0]}
	case 2:
		param = glbuild.Param{Type: fields[0], Name: fields[1]}
		if !glbuild.IsIdent(param.Type) {
			return param, fmt.Errorf("%w: parameter type %q is not an identifier", ErrDefinition, param.Type)
		}
	default:
		return param, fmt.Errorf("%w: parameter %q, want name or type name", ErrDefinition, arg)
	}
	return param, checkDefinitionIdent(param.Name)
}

func checkDefinitionIdent(name string) error {
	switch {
	case !glbuild.IsIdent(name):
		return fmt.Errorf("%w: %q is not an identifier", ErrDefinition, name)
	case name == posParam:
		return fmt.Errorf("%w: %q is reserved for the position", ErrDefinition, name)
	case strings.HasPrefix(name, "def_"):
		return fmt.Errorf("%w: %q uses the reserved def_ prefix", ErrDefinition, name)
	}
	return nil
}
