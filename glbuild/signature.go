package glbuild

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Signature is the declaration of a top level GLSL function.
type Signature struct {
	Return string
	Name   string
	Params []Param
}

// String returns the GLSL declaration of the signature.
func (s Signature) String() string {
	var b []byte
	b = append(b, s.Return...)
	b = append(b, ' ')
	b = append(b, s.Name...)
	b = append(b, '(')
	for i, p := range s.Params {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, p.Type...)
		b = append(b, ' ')
		b = append(b, p.Name...)
	}
	b = append(b, ')')
	return string(b)
}

var declRegexp = regexp.MustCompile(`^\s*(\w+)\s+(\w+)\s*\(([^()]*)\)\s*$`)

// ParseSignatures scans GLSL source for top level function definitions and
// returns their signatures in declaration order. Prototypes, structs and
// preprocessor lines are skipped.
func ParseSignatures(src []byte) ([]Signature, error) {
	src = stripComments(src)
	var sigs []Signature
	depth := 0
	segStart := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '#':
			if depth == 0 {
				// Skip preprocessor line.
				end := bytes.IndexByte(src[i:], '\n')
				if end < 0 {
					return sigs, nil
				}
				i += end
				segStart = i + 1
			}
		case ';':
			if depth == 0 {
				segStart = i + 1
			}
		case '{':
			if depth == 0 {
				m := declRegexp.FindSubmatch(src[segStart:i])
				if m != nil {
					params, err := parseParams(string(m[3]))
					if err != nil {
						return nil, fmt.Errorf("function %s: %w", m[2], err)
					}
					sigs = append(sigs, Signature{Return: string(m[1]), Name: string(m[2]), Params: params})
				}
			}
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced braces in GLSL source")
			}
			if depth == 0 {
				segStart = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unterminated block in GLSL source")
	}
	return sigs, nil
}

func parseParams(s string) ([]Param, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "void" {
		return nil, nil
	}
	var params []Param
	for _, field := range strings.Split(s, ",") {
		words := strings.Fields(field)
		// Drop qualifiers such as in/out/inout/const.
		for len(words) > 2 {
			words = words[1:]
		}
		if len(words) != 2 {
			return nil, fmt.Errorf("malformed parameter %q", field)
		}
		params = append(params, Param{Type: words[0], Name: words[1]})
	}
	return params, nil
}

func stripComments(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		if src[i] == '/' && i+1 < len(src) {
			switch src[i+1] {
			case '/':
				end := bytes.IndexByte(src[i:], '\n')
				if end < 0 {
					return out
				}
				i += end - 1
				continue
			case '*':
				end := bytes.Index(src[i+2:], []byte("*/"))
				if end < 0 {
					return out
				}
				i += end + 3
				out = append(out, ' ')
				continue
			}
		}
		out = append(out, src[i])
	}
	return out
}
