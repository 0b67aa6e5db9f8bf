package sdfwalk

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/soypat/sdfwalk/glbuild"
	"github.com/soypat/sdfwalk/glbuild/glsllib"
)

// IssueLevel is the severity of a lint [Issue].
type IssueLevel string

const (
	// IssueError marks code that will fail to compile as GLSL.
	IssueError IssueLevel = "error"
	// IssueWarning marks suspicious but valid code.
	IssueWarning IssueLevel = "warning"
)

// Lint issue codes.
const (
	CodeUnresolvedName   = "unresolved-name"
	CodeArity            = "arity"
	CodeSortMismatch     = "sort-mismatch"
	CodeForwardReference = "forward-reference"
	CodeShadowedName     = "shadowed-name"
)

// Issue is a problem found by [SceneDesc.Lint].
type Issue struct {
	Level   IssueLevel `json:"level"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	// Name is the statement or definition the issue refers to.
	Name string `json:"name,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Level, i.Code, i.Message)
}

// Lint resolves every named primitive reference in the scene against the
// GLSL library and the scene's definitions. Named references are compiled
// as-is, so problems reported here would otherwise surface only when the
// shader is compiled by the graphics driver.
func (sd *SceneDesc) Lint() []Issue {
	sigs, err := glsllib.LibrarySignatures()
	if err != nil {
		return []Issue{{Level: IssueError, Code: "library", Message: err.Error()}}
	}
	l := linter{
		library: make(map[string][]glbuild.Signature),
		defs:    make(map[string]int),
		sd:      sd,
	}
	for _, sig := range sigs {
		l.library[sig.Name] = append(l.library[sig.Name], sig)
	}
	for i, def := range sd.Definitions {
		l.defs[def.Name] = i
		if _, ok := l.library[def.Name]; ok {
			l.add(IssueWarning, CodeShadowedName, def.Name, "definition %s overloads a library function", def.Name)
		}
	}
	for i, def := range sd.Definitions {
		l.lintTree(def.Body, i)
	}
	if sd.Opaque != nil {
		l.lintTree(sd.Opaque, len(sd.Definitions))
	}
	if sd.Transparent != nil {
		l.lintTree(sd.Transparent, len(sd.Definitions))
	}
	return l.issues
}

type linter struct {
	library map[string][]glbuild.Signature
	// defs maps definition names to their declaration index.
	defs   map[string]int
	sd     *SceneDesc
	issues []Issue
}

func (l *linter) add(level IssueLevel, code, name, format string, args ...any) {
	l.issues = append(l.issues, Issue{Level: level, Code: code, Name: name, Message: fmt.Sprintf(format, args...)})
}

// lintTree checks references in a tree compiled before the definition at index visible.
func (l *linter) lintTree(root Node, visible int) {
	Walk(root, func(n Node) error {
		if named, ok := n.(*Named); ok {
			l.lintNamed(named, visible)
		}
		return nil
	})
}

func (l *linter) lintNamed(n *Named, visible int) {
	if idx, ok := l.defs[n.Name]; ok {
		def := l.sd.Definitions[idx]
		if idx >= visible {
			l.add(IssueError, CodeForwardReference, n.Name, "%s is used before its definition", n.Name)
			return
		}
		if len(n.Args) != len(def.Params) {
			l.add(IssueError, CodeArity, n.Name, "definition %s takes %d arguments, got %d", n.Name, len(def.Params), len(n.Args))
		}
		return
	}
	overloads, ok := l.library[n.Name]
	if !ok {
		msg := fmt.Sprintf("%s is neither a library function nor a definition", n.Name)
		if suggestion := l.suggest(n.Name); suggestion != "" {
			msg += fmt.Sprintf(", did you mean %q?", suggestion)
		}
		l.add(IssueError, CodeUnresolvedName, n.Name, "%s", msg)
		return
	}
	var arityMatch *glbuild.Signature
	for i := range overloads {
		// Position is passed as the trailing argument.
		if len(overloads[i].Params) == len(n.Args)+1 {
			arityMatch = &overloads[i]
			break
		}
	}
	if arityMatch == nil {
		l.add(IssueError, CodeArity, n.Name, "%s takes %d arguments, got %d", n.Name, len(overloads[0].Params)-1, len(n.Args))
		return
	}
	if want := n.Sort().GLType(); arityMatch.Return != want {
		l.add(IssueError, CodeSortMismatch, n.Name, "%s returns %s but is used as %s, which needs %s",
			n.Name, arityMatch.Return, n.Sort(), want)
	}
}

// suggest returns the closest known primitive or definition name, or the empty string.
func (l *linter) suggest(name string) string {
	var candidates []string
	for lib, overloads := range l.library {
		params := overloads[0].Params
		if len(params) > 0 && params[len(params)-1].Type == "vec3" {
			candidates = append(candidates, lib)
		}
	}
	for def := range l.defs {
		candidates = append(candidates, def)
	}
	sort.Strings(candidates) // Deterministic ranking among ties.
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Stable(ranks)
	return ranks[0].Target
}
