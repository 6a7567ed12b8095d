// Package model holds the records shared by the extractor, the usage graph
// and every collaborator that consumes them.
package model

import "sort"

// Kind is the category of a top-level nominal type.
type Kind string

const (
	KindClass       Kind = "Class"
	KindInterface   Kind = "Interface"
	KindEnum        Kind = "Enum"
	KindObject      Kind = "Object"
	KindSealedClass Kind = "SealedClass"
	KindDataClass   Kind = "DataClass"
	KindAnnotation  Kind = "Annotation"
)

// AllKinds lists every Kind in declaration order.
func AllKinds() []Kind {
	return []Kind{KindClass, KindInterface, KindEnum, KindObject, KindSealedClass, KindDataClass, KindAnnotation}
}

// Visibility levels. Public is the value recorded when no modifier is present.
const (
	VisibilityPublic    = "public"
	VisibilityInternal  = "internal"
	VisibilityProtected = "protected"
	VisibilityPrivate   = "private"
)

// IsVisibility reports whether s is a known visibility modifier.
func IsVisibility(s string) bool {
	switch s {
	case VisibilityPublic, VisibilityInternal, VisibilityProtected, VisibilityPrivate:
		return true
	}
	return false
}

// Variable is a member, constructor parameter or function parameter.
type Variable struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Annotations  []string `json:"annotations,omitempty"`
	Visibility   string   `json:"visibility"`
	DefaultValue string   `json:"default_value,omitempty"`
	Mutable      bool     `json:"mutable,omitempty"`
}

// Function is a function declared in a type body.
type Function struct {
	Name           string     `json:"name"`
	Visibility     string     `json:"visibility"`
	Annotations    []string   `json:"annotations,omitempty"`
	ReturnType     string     `json:"return_type"`
	Parameters     []Variable `json:"parameters,omitempty"`
	TypeParameters []string   `json:"type_parameters,omitempty"`
	Signature      string     `json:"signature"`
}

// Declaration is one top-level nominal type extracted from one file.
type Declaration struct {
	FQN               string     `json:"fqn"`
	Name              string     `json:"name"`
	Kind              Kind       `json:"kind"`
	PackageName       string     `json:"package_name"`
	Visibility        string     `json:"visibility"`
	Annotations       []string   `json:"annotations,omitempty"`
	Extends           string     `json:"extends,omitempty"`
	Implements        []string   `json:"implements,omitempty"`
	TypeParameters    []string   `json:"type_parameters,omitempty"`
	Members           []Variable `json:"members,omitempty"`
	ConstructorParams []Variable `json:"constructor_params,omitempty"`
	Functions         []Function `json:"functions,omitempty"`
	Imports           []string   `json:"imports,omitempty"`
	Uses              []string   `json:"uses"`
	UsedBy            []string   `json:"used_by"`

	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Clone returns a deep copy of d. The graph hands out clones so that
// readers can never write through to a finalized declaration.
func (d Declaration) Clone() Declaration {
	out := d
	out.Annotations = cloneStrings(d.Annotations)
	out.Implements = cloneStrings(d.Implements)
	out.TypeParameters = cloneStrings(d.TypeParameters)
	out.Imports = cloneStrings(d.Imports)
	out.Uses = cloneStrings(d.Uses)
	out.UsedBy = cloneStrings(d.UsedBy)
	out.Members = cloneVariables(d.Members)
	out.ConstructorParams = cloneVariables(d.ConstructorParams)
	if d.Functions != nil {
		out.Functions = make([]Function, len(d.Functions))
		for i, f := range d.Functions {
			f.Annotations = cloneStrings(f.Annotations)
			f.Parameters = cloneVariables(f.Parameters)
			f.TypeParameters = cloneStrings(f.TypeParameters)
			out.Functions[i] = f
		}
	}
	return out
}

// AnalysisResult is the outcome of analyzing one source file.
type AnalysisResult struct {
	Path         string        `json:"path"`
	PackageName  string        `json:"package_name"`
	Imports      []string      `json:"imports"`
	Declarations []Declaration `json:"declarations"`
	ParseError   string        `json:"parse_error,omitempty"`
	ContentHash  string        `json:"content_hash"`
	Skipped      bool          `json:"skipped,omitempty"`
	Diagnostics  []string      `json:"diagnostics,omitempty"`
}

// Conflict reports a fully-qualified name declared more than once.
type Conflict struct {
	FQN   string   `json:"fqn"`
	Paths []string `json:"paths"`
}

// SortedSet returns the distinct values of in, sorted. It never returns nil
// so that empty sets serialize as [].
func SortedSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AppendUnique appends s to list when it is not already present,
// preserving first-seen order.
func AppendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// InsertSorted inserts s into the sorted list when absent.
func InsertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

// ContainsSorted reports whether the sorted list contains s.
func ContainsSorted(list []string, s string) bool {
	i := sort.SearchStrings(list, s)
	return i < len(list) && list[i] == s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneVariables(in []Variable) []Variable {
	if in == nil {
		return nil
	}
	out := make([]Variable, len(in))
	for i, v := range in {
		v.Annotations = cloneStrings(v.Annotations)
		out[i] = v
	}
	return out
}
