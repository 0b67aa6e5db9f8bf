package sdfwalk

import (
	"strconv"

	"github.com/soypat/sdfwalk/glbuild"
)

// Fold combines same-sort items left to right with Op: op(op(a, b), c).
// An empty fold evaluates to the identity of Op and a single item fold
// evaluates to the item itself.
type Fold struct {
	sort  Sort
	Op    FoldOp
	K     string // Smoothing factor, used by OpSmoothUnion only.
	Items []Node
}

func (f *Fold) Sort() Sort { return f.sort }

func (f *Fold) AppendExpr(b []byte, ctx Context, fn *glbuild.Function) []byte {
	switch len(f.Items) {
	case 0:
		return append(b, f.sort.identity(f.Op)...)
	case 1:
		return f.Items[0].AppendExpr(b, ctx, fn)
	}
	var k string
	if f.Op == OpSmoothUnion {
		k = ctx.expand(f.K)
	}
	exprs := make([][]byte, len(f.Items))
	for i, item := range f.Items {
		exprs[i] = item.AppendExpr(nil, ctx, fn)
	}
	return appendFold(b, f.Op.FuncName(f.sort), k, exprs)
}

// appendFold appends the left associative nesting of the combinator name over exprs.
// k is passed as leading argument when not empty.
func appendFold(b []byte, name, k string, exprs [][]byte) []byte {
	var lead [][]byte
	if k != "" {
		lead = [][]byte{[]byte(k)}
	}
	acc := exprs[0]
	for _, expr := range exprs[1:] {
		acc = glbuild.AppendCall(nil, name, append(lead[:len(lead):len(lead)], acc, expr)...)
	}
	return append(b, acc...)
}

func (f *Fold) ForEachChild(fn func(child Node) error) error {
	for _, item := range f.Items {
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

func (*Fold) isNode() {}

// TransformKind selects how a [Transform] is lowered.
type TransformKind uint8

const (
	// TransformRemap binds a new position name(args..., pos) and evaluates the child there.
	TransformRemap TransformKind = iota
	// TransformScale evaluates the child at pos/k and scales the distance by k.
	TransformScale
	// TransformOnionize binds the child's value and hollows it to a shell of thickness t.
	TransformOnionize
	// TransformAdvancedRepeat evaluates the child in the owning cell and its 7 closest
	// neighbours and unions the results.
	TransformAdvancedRepeat
	// TransformCond binds a boolean and evaluates to the child when true or empty otherwise.
	TransformCond
	// TransformLet binds an expression that the child refers to as $name.
	TransformLet
)

// advancedRepeatCells is the number of cells evaluated by TransformAdvancedRepeat.
const advancedRepeatCells = 8

// Transform wraps a single child of the same sort.
type Transform struct {
	sort  Sort
	Kind  TransformKind
	Name  string
	Args  []string
	Child Node
}

func (t *Transform) Sort() Sort { return t.sort }

func (t *Transform) AppendExpr(b []byte, ctx Context, fn *glbuild.Function) []byte {
	switch t.Kind {
	case TransformRemap:
		args := append(ctx.expandAll(t.Args), ctx.Pos)
		pos := fn.GenDefinition("vec3", appendCall(nil, t.Name, args...))
		return t.Child.AppendExpr(b, ctx.withPos(pos), fn)

	case TransformScale:
		k := ctx.expand(t.Args[0])
		pos := fn.GenDefinition("vec3", appendCall(nil, "scale", k, ctx.Pos))
		inner := t.Child.AppendExpr(nil, ctx.withPos(pos), fn)
		return appendCall(b, t.sort.prefix()+"scale", k, string(inner))

	case TransformOnionize:
		inner := t.Child.AppendExpr(nil, ctx, fn)
		def := fn.GenDefinition(t.sort.GLType(), inner)
		return appendCall(b, t.sort.prefix()+"onionize", ctx.expand(t.Args[0]), def)

	case TransformAdvancedRepeat:
		args := ctx.expandAll(t.Args)
		exprs := make([][]byte, advancedRepeatCells)
		for i := range exprs {
			cellArgs := append(args[:len(args):len(args)], strconv.Itoa(i), ctx.Pos)
			pos := fn.GenDefinition("vec3", appendCall(nil, "advanced_repeat", cellArgs...))
			exprs[i] = t.Child.AppendExpr(nil, ctx.withPos(pos), fn)
		}
		return appendFold(b, OpUnion.FuncName(t.sort), "", exprs)

	case TransformCond:
		cond := fn.GenDefinition("bool", []byte(ctx.expand(t.Args[0])))
		b = append(b, '(')
		b = append(b, cond...)
		b = append(b, " ? "...)
		b = t.Child.AppendExpr(b, ctx, fn)
		b = append(b, " : "...)
		b = append(b, t.sort.identity(OpUnion)...)
		b = append(b, ')')
		return b

	case TransformLet:
		typ := "float"
		if len(t.Args) > 2 {
			typ = t.Args[2]
		}
		ident := fn.GenDefinition(typ, []byte(ctx.expand(t.Args[1])))
		return t.Child.AppendExpr(b, ctx.bind(t.Args[0], ident), fn)
	}
	panic("unknown transform kind " + strconv.Itoa(int(t.Kind)))
}

func (t *Transform) ForEachChild(fn func(child Node) error) error { return fn(t.Child) }

func (*Transform) isNode() {}
