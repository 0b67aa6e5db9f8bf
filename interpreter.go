package sdfwalk

import (
	"errors"
	"fmt"

	"github.com/soypat/sdfwalk/glbuild"
	"github.com/soypat/sdfwalk/scenelang"
)

// remaps lists positional transforms and their argument count. Each is lowered
// to a single vec3 binding calling the library function of the same name.
var remaps = map[string]int{
	"at":       3,
	"rotate":   3,
	"repeat":   3,
	"mirror_x": 0,
	"mirror_y": 0,
	"mirror_z": 0,
	"twist":    1,
	"bend":     1,
	"elongate": 3,
}

var folds = map[string]FoldOp{
	"union":        OpUnion,
	"intersection": OpIntersection,
	"difference":   OpDifference,
	"smooth_union": OpSmoothUnion,
}

// topLevelOnly lists statements handled by the scene compiler and rejected
// when nested inside other statements.
var topLevelOnly = map[string]bool{
	"define_geometry":    true,
	"define_opaque":      true,
	"define_transparent": true,
	"camera":             true,
}

// Visitor interprets statements into IR nodes of a single [Sort]. All sorts
// share the same grammar; the sort decides which statements are legal and
// which combinators lowering selects.
type Visitor struct {
	sort  Sort
	defs  map[string]Sort
	scope []string
}

// NewVisitor returns a Visitor producing nodes of the given sort.
func NewVisitor(sort Sort) *Visitor {
	return &Visitor{sort: sort}
}

// Sort returns the sort of the nodes v produces.
func (v *Visitor) Sort() Sort { return v.sort }

func (v *Visitor) withSort(sort Sort) *Visitor {
	cp := *v
	cp.sort = sort
	return &cp
}

func (v *Visitor) withBinding(name string) *Visitor {
	cp := *v
	cp.scope = append(v.scope[:len(v.scope):len(v.scope)], name)
	return &cp
}

// Apply interprets stmt and its body. The returned error is a *[StatementError].
func (v *Visitor) Apply(stmt scenelang.Statement) (Node, error) {
	node, err := v.apply(stmt)
	if err == nil {
		return node, nil
	}
	var serr *StatementError
	if errors.As(err, &serr) {
		return nil, err
	}
	return nil, &StatementError{Name: stmt.Name, Sort: v.sort, Err: err}
}

func (v *Visitor) apply(stmt scenelang.Statement) (Node, error) {
	name := stmt.Name
	if topLevelOnly[name] {
		return nil, ErrTopLevelOnly
	}
	if op, ok := folds[name]; ok {
		var k string
		if op == OpSmoothUnion {
			if err := v.checkArgs(stmt, 1, 1); err != nil {
				return nil, err
			}
			k = stmt.Args[0]
		} else if err := v.checkArgs(stmt, 0, 0); err != nil {
			return nil, err
		}
		items, err := v.applyBody(stmt)
		if err != nil {
			return nil, err
		}
		return &Fold{sort: v.sort, Op: op, K: k, Items: items}, nil
	}
	if nargs, ok := remaps[name]; ok {
		if err := v.checkArgs(stmt, nargs, nargs); err != nil {
			return nil, err
		}
		return v.transform(stmt, TransformRemap, v)
	}

	switch name {
	case "opaque", "transparent":
		want := SortOpaque
		if name == "transparent" {
			want = SortTransparent
		}
		if v.sort != want {
			return nil, fmt.Errorf("%w: %s shape used as %s", ErrWrongSort, want, v.sort)
		}
		if err := v.checkArgs(stmt, 3, 3); err != nil {
			return nil, err
		}
		geom := v.withSort(SortGeometry)
		items, err := geom.applyBody(stmt)
		if err != nil {
			return nil, err
		}
		return &Shape{
			sort:  v.sort,
			Color: [3]string{stmt.Args[0], stmt.Args[1], stmt.Args[2]},
			Child: &Fold{sort: SortGeometry, Op: OpUnion, Items: items},
		}, nil

	case "raw":
		if err := v.checkArgs(stmt, 1, 1); err != nil {
			return nil, err
		} else if len(stmt.Body) > 0 {
			return nil, ErrPrimitiveBody
		}
		return &Raw{sort: v.sort, Expr: stmt.Args[0]}, nil

	case "scale":
		if err := v.checkArgs(stmt, 1, 1); err != nil {
			return nil, err
		}
		return v.transform(stmt, TransformScale, v)

	case "onionize":
		if err := v.checkArgs(stmt, 1, 1); err != nil {
			return nil, err
		}
		return v.transform(stmt, TransformOnionize, v)

	case "advanced_repeat":
		if err := v.checkArgs(stmt, 3, 3); err != nil {
			return nil, err
		}
		return v.transform(stmt, TransformAdvancedRepeat, v)

	case "cond":
		if err := v.checkArgs(stmt, 1, 1); err != nil {
			return nil, err
		}
		return v.transform(stmt, TransformCond, v)

	case "let":
		if err := checkArity(stmt, 2, 3); err != nil {
			return nil, err
		}
		if !glbuild.IsIdent(stmt.Args[0]) {
			return nil, fmt.Errorf("let binding name %q is not an identifier", stmt.Args[0])
		} else if len(stmt.Args) == 3 && !glbuild.IsIdent(stmt.Args[2]) {
			return nil, fmt.Errorf("let binding type %q is not an identifier", stmt.Args[2])
		} else if err := v.checkTemplate(stmt.Args[1]); err != nil {
			return nil, err
		}
		return v.transform(stmt, TransformLet, v.withBinding(stmt.Args[0]))
	}

	// Anything else names a library primitive or scene definition.
	if len(stmt.Body) > 0 {
		return nil, ErrPrimitiveBody
	}
	if defSort, ok := v.defs[name]; ok && defSort != v.sort {
		return nil, fmt.Errorf("%w: %s is a %s definition", ErrWrongSort, name, defSort)
	}
	if err := v.checkArgs(stmt, 0, -1); err != nil {
		return nil, err
	}
	return &Named{sort: v.sort, Name: name, Args: stmt.Args}, nil
}

// transform builds a transform over the union of the statement's body, which
// is interpreted by bodyVisitor.
func (v *Visitor) transform(stmt scenelang.Statement, kind TransformKind, bodyVisitor *Visitor) (Node, error) {
	items, err := bodyVisitor.applyBody(stmt)
	if err != nil {
		return nil, err
	}
	return &Transform{
		sort:  v.sort,
		Kind:  kind,
		Name:  stmt.Name,
		Args:  stmt.Args,
		Child: &Fold{sort: v.sort, Op: OpUnion, Items: items},
	}, nil
}

func (v *Visitor) applyBody(stmt scenelang.Statement) ([]Node, error) {
	items := make([]Node, 0, len(stmt.Body))
	for _, child := range stmt.Body {
		node, err := v.Apply(child)
		if err != nil {
			var serr *StatementError
			if errors.As(err, &serr) {
				serr.Path = append([]string{stmt.Name}, serr.Path...)
			}
			return nil, err
		}
		items = append(items, node)
	}
	return items, nil
}

// checkArgs checks the argument count is within [lo, hi] (hi < 0 means
// unbounded) and that every $name reference is bound.
func (v *Visitor) checkArgs(stmt scenelang.Statement, lo, hi int) error {
	if err := checkArity(stmt, lo, hi); err != nil {
		return err
	}
	for _, arg := range stmt.Args {
		if err := v.checkTemplate(arg); err != nil {
			return err
		}
	}
	return nil
}

func (v *Visitor) checkTemplate(tmpl string) error {
	for _, ref := range templateRefs(tmpl) {
		if !v.bound(ref) {
			return fmt.Errorf("%w: $%s", ErrUndefinedBinding, ref)
		}
	}
	return nil
}

func (v *Visitor) bound(name string) bool {
	for i := len(v.scope) - 1; i >= 0; i-- {
		if v.scope[i] == name {
			return true
		}
	}
	return false
}

func checkArity(stmt scenelang.Statement, lo, hi int) error {
	n := len(stmt.Args)
	switch {
	case n >= lo && (hi < 0 || n <= hi):
		return nil
	case lo == hi:
		return fmt.Errorf("%w: want %d, got %d", ErrArity, lo, n)
	case hi < 0:
		return fmt.Errorf("%w: want at least %d, got %d", ErrArity, lo, n)
	}
	return fmt.Errorf("%w: want %d to %d, got %d", ErrArity, lo, hi, n)
}
