package extract

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/declgraph/internal/pattern"
)

// Capture slots used by the Kotlin pattern set.
const (
	capPackage    pattern.Capture = "package"
	capImport     pattern.Capture = "import"
	capImportPath pattern.Capture = "import.path"

	capDecl     pattern.Capture = "decl"
	capDeclName pattern.Capture = "decl.name"

	capModifiers  pattern.Capture = "mods"
	capAnnotation pattern.Capture = "mod.annotation"
	capVisibility pattern.Capture = "mod.visibility"
	capClassMod   pattern.Capture = "mod.class"

	capSuper     pattern.Capture = "super"
	capSuperCall pattern.Capture = "super.call"
	capSuperType pattern.Capture = "super.type"

	capParam     pattern.Capture = "param"
	capParamName pattern.Capture = "param.name"

	capProperty     pattern.Capture = "prop"
	capPropertyName pattern.Capture = "prop.name"

	capFunction     pattern.Capture = "fn"
	capFunctionName pattern.Capture = "fn.name"
	capFunctionArgs pattern.Capture = "fn.params"
)

var kotlinSchema = pattern.NewSchema(
	capPackage, capImport, capImportPath,
	capDecl, capDeclName,
	capModifiers, capAnnotation, capVisibility, capClassMod,
	capSuper, capSuperCall, capSuperType,
	capParam, capParamName,
	capProperty, capPropertyName,
	capFunction, capFunctionName, capFunctionArgs,
)

// Pattern names.
const (
	patPackage     = "package"
	patImport      = "import"
	patDeclaration = "declaration"
	patAnnotated   = "annotated_expression"
	patModifiers   = "modifiers"
	patSupertypes  = "supertypes"
	patCtorParams  = "constructor_params"
	patProperties  = "properties"
	patFunctions   = "functions"
	patFuncParams  = "function_params"
)

type patternDef struct {
	name   string
	source string
	anchor pattern.Capture
}

var kotlinPatterns = []patternDef{
	{patPackage, `(package_header (qualified_identifier) @package)`, ""},
	{patImport, `(import (qualified_identifier) @import.path) @import`, capImport},
	{patDeclaration, `
[
  (class_declaration (identifier) @decl.name)
  (object_declaration (identifier) @decl.name)
] @decl`, capDecl},
	{patAnnotated, `(annotated_expression (annotation) @mod.annotation) @decl`, capDecl},
	{patModifiers, `
(modifiers
  [
    (annotation) @mod.annotation
    (visibility_modifier) @mod.visibility
    (class_modifier) @mod.class
  ]) @mods`, capModifiers},
	{patSupertypes, `
(delegation_specifier
  [
    (constructor_invocation (user_type) @super.call)
    (user_type) @super.type
  ]) @super`, capSuper},
	{patCtorParams, `(class_parameter (identifier) @param.name) @param`, capParam},
	{patProperties, `(property_declaration (variable_declaration (identifier) @prop.name)) @prop`, capProperty},
	{patFunctions, `(function_declaration (identifier) @fn.name (function_value_parameters) @fn.params) @fn`, capFunction},
	{patFuncParams, `(parameter (identifier) @param.name) @param`, capParam},
}

func compileKotlin(language *tree_sitter.Language) (*pattern.Set, error) {
	compiled := make([]*pattern.Pattern, 0, len(kotlinPatterns))
	closeAll := func() {
		for _, p := range compiled {
			p.Close()
		}
	}
	for _, def := range kotlinPatterns {
		var opts []pattern.Option
		if def.anchor != "" {
			opts = append(opts, pattern.WithAnchor(def.anchor))
		}
		p, err := pattern.Compile(language, def.name, def.source, kotlinSchema, opts...)
		if err != nil {
			closeAll()
			return nil, err
		}
		compiled = append(compiled, p)
	}
	set, err := pattern.NewSet(compiled...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return set, nil
}
