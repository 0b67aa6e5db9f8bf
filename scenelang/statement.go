// Package scenelang parses scene source text into a tree of generic statements.
//
// A statement is an identifier, an optional parenthesized argument list and an
// optional body:
//
//	union {
//		at(1, 0, 0) sphere(0.5);
//		box(1, 1, 1);
//	}
//
// Arguments are kept as raw expression text. Meaning is assigned by the
// interpreters that consume the tree.
package scenelang

// Statement is a node of the generic statement tree.
type Statement struct {
	Name string
	Args []string
	Body []Statement
}

// String returns the canonical text form name(a, b){c; d} of the statement.
func (s Statement) String() string {
	return string(s.AppendStatement(nil))
}

// AppendStatement appends the canonical text form of s to b. Parsing the
// result yields s back when the arguments are in normalized form.
func (s Statement) AppendStatement(b []byte) []byte {
	b = append(b, s.Name...)
	b = append(b, '(')
	for i, arg := range s.Args {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, arg...)
	}
	b = append(b, "){"...)
	for i, child := range s.Body {
		if i > 0 {
			b = append(b, "; "...)
		}
		b = child.AppendStatement(b)
	}
	b = append(b, '}')
	return b
}

// Equal reports whether s and other are structurally identical.
func (s Statement) Equal(other Statement) bool {
	if s.Name != other.Name || len(s.Args) != len(other.Args) || len(s.Body) != len(other.Body) {
		return false
	}
	for i := range s.Args {
		if s.Args[i] != other.Args[i] {
			return false
		}
	}
	for i := range s.Body {
		if !s.Body[i].Equal(other.Body[i]) {
			return false
		}
	}
	return true
}
