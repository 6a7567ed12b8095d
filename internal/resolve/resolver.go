// Package resolve maps raw type names written in source to fully-qualified
// names using only the import and package context of the referencing file.
// It is syntactic: a resolved name need not exist anywhere in the project.
package resolve

import (
	"strings"
	"unicode"

	"github.com/DeusData/declgraph/internal/fqn"
)

// Context is the naming context of one source file.
type Context struct {
	Package string
	Imports []string          // raw import paths in source order; wildcards end in ".*"
	Aliases map[string]string // alias -> imported path, from "import a.B as C"
}

// Resolver resolves type names against a Context. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	builtins map[string]struct{}
}

// New creates a Resolver that treats every name in builtins as a built-in
// type that never becomes a usage edge.
func New(builtins []string) *Resolver {
	r := &Resolver{builtins: make(map[string]struct{}, len(builtins))}
	for _, b := range builtins {
		b = strings.TrimSpace(b)
		if b != "" {
			r.builtins[b] = struct{}{}
		}
	}
	return r
}

// IsBuiltin reports whether name is on the built-in allowlist. Names
// qualified with a kotlin.* or java.lang package are checked by their
// simple name.
func (r *Resolver) IsBuiltin(name string) bool {
	if _, ok := r.builtins[name]; ok {
		return true
	}
	pkg := fqn.Package(name)
	if pkg == "" {
		return false
	}
	if pkg == "kotlin" || strings.HasPrefix(pkg, "kotlin.") || pkg == "java.lang" {
		_, ok := r.builtins[fqn.Simple(name)]
		return ok
	}
	return false
}

// Resolve resolves raw against the given imports and package.
//
// First match wins:
//  1. an import whose last segment equals raw
//  2. a wildcard import "p.*", giving "p.raw"
//  3. the file's own package, giving "pkg.raw"
//  4. raw unchanged
func (r *Resolver) Resolve(raw string, imports []string, pkg string) string {
	return r.ResolveIn(raw, Context{Package: pkg, Imports: imports})
}

// ResolveIn is Resolve with alias support: an alias import is consulted
// right after exact imports.
//
// A dotted name whose first segment starts with a lower-case letter is taken
// as already qualified. Otherwise the first segment is resolved and the rest
// is appended, so Outer.Inner becomes pkg.Outer.Inner.
func (r *Resolver) ResolveIn(raw string, ctx Context) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	head, rest := fqn.Split(raw)
	if rest != "" && startsLower(head) {
		return raw
	}
	resolved := r.resolveSimple(head, ctx)
	if rest == "" {
		return resolved
	}
	return resolved + "." + rest
}

func (r *Resolver) resolveSimple(name string, ctx Context) string {
	for _, imp := range ctx.Imports {
		if isWildcard(imp) {
			continue
		}
		if fqn.Simple(imp) == name {
			return imp
		}
	}
	if target, ok := ctx.Aliases[name]; ok && target != "" {
		return target
	}
	for _, imp := range ctx.Imports {
		if isWildcard(imp) {
			return strings.TrimSuffix(imp, "*") + name
		}
	}
	if ctx.Package != "" {
		return fqn.Join(ctx.Package, name)
	}
	return name
}

// References resolves every type name mentioned in rawType. Built-ins and
// names in exclude (generic type parameters) are dropped before resolution.
// The result keeps first-seen order without duplicates.
func (r *Resolver) References(rawType string, ctx Context, exclude []string) []string {
	var out []string
	for _, name := range TypeNames(rawType) {
		if r.IsBuiltin(name) || contains(exclude, name) {
			continue
		}
		head, _ := fqn.Split(name)
		if head != name && contains(exclude, head) {
			continue
		}
		resolved := r.ResolveIn(name, ctx)
		if resolved == "" || contains(out, resolved) {
			continue
		}
		out = append(out, resolved)
	}
	return out
}

func isWildcard(imp string) bool {
	return strings.HasSuffix(imp, ".*")
}

func startsLower(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
