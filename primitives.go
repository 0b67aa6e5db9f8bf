package sdfwalk

import (
	"github.com/soypat/sdfwalk/glbuild"
)

// Node is a typed IR node. The set of implementations is closed:
// [*Named], [*Raw], [*Fold], [*Transform] and [*Shape].
type Node interface {
	// Sort returns the kind of value the node evaluates to.
	Sort() Sort
	// AppendExpr appends the GLSL expression evaluating the node at ctx.Pos
	// to b. Intermediate values are declared in fn.
	AppendExpr(b []byte, ctx Context, fn *glbuild.Function) []byte
	// ForEachChild calls fn for each direct child in order.
	ForEachChild(fn func(child Node) error) error
	isNode()
}

var (
	_ Node = (*Named)(nil)
	_ Node = (*Raw)(nil)
	_ Node = (*Shape)(nil)
	_ Node = (*Fold)(nil)
	_ Node = (*Transform)(nil)
)

// Named is a call to a library primitive or scene definition. The evaluated
// position is appended after Args.
type Named struct {
	sort Sort
	Name string
	Args []string
}

func (n *Named) Sort() Sort { return n.sort }

func (n *Named) AppendExpr(b []byte, ctx Context, fn *glbuild.Function) []byte {
	args := append(ctx.expandAll(n.Args), ctx.Pos)
	return appendCall(b, n.Name, args...)
}

func (n *Named) ForEachChild(fn func(child Node) error) error { return nil }

func (*Named) isNode() {}

// Raw is a literal GLSL expression. $ is replaced by the evaluated position
// and $name by the let binding name.
type Raw struct {
	sort Sort
	Expr string
}

func (r *Raw) Sort() Sort { return r.sort }

func (r *Raw) AppendExpr(b []byte, ctx Context, fn *glbuild.Function) []byte {
	return append(b, ctx.expand(r.Expr)...)
}

func (r *Raw) ForEachChild(fn func(child Node) error) error { return nil }

func (*Raw) isNode() {}

// Shape gives a geometry a color, producing an opaque or transparent node.
type Shape struct {
	sort  Sort
	Color [3]string
	Child Node
}

func (s *Shape) Sort() Sort { return s.sort }

func (s *Shape) AppendExpr(b []byte, ctx Context, fn *glbuild.Function) []byte {
	b = append(b, "vec4("...)
	for _, c := range s.Color {
		b = append(b, ctx.expand(c)...)
		b = append(b, ", "...)
	}
	b = s.Child.AppendExpr(b, ctx, fn)
	b = append(b, ')')
	return b
}

func (s *Shape) ForEachChild(fn func(child Node) error) error { return fn(s.Child) }

func (*Shape) isNode() {}

// Walk calls fn for root and all its descendants in depth first order.
// Returning an error from fn stops the walk.
func Walk(root Node, fn func(n Node) error) error {
	if err := fn(root); err != nil {
		return err
	}
	return root.ForEachChild(func(child Node) error {
		return Walk(child, fn)
	})
}
