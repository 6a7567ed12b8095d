package lang

import "sort"

// Language represents a supported programming language.
type Language string

const (
	Kotlin Language = "kotlin"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{Kotlin}
}

// LanguageSpec defines the tree-sitter node types and naming conventions for a language.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string

	// DeclarationNodeTypes lists node kinds that introduce a nominal type.
	DeclarationNodeTypes []string
	// OwnerNodeTypes lists node kinds that own the members found below them.
	// A member belongs to a declaration only when the declaration is its
	// nearest owner.
	OwnerNodeTypes []string
	// BuiltinTypes is the allowlist of type names never recorded as usages.
	BuiltinTypes []string
	// DefaultReturnType is used when a function declares no return type.
	DefaultReturnType string

	// Test file naming conventions.
	TestFileSuffixes []string // checked on the base name without extension
	TestDirs         []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".kt").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// Extensions returns every registered file extension, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
