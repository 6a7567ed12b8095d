package lang

func init() {
	Register(&LanguageSpec{
		Language:       Kotlin,
		FileExtensions: []string{".kt", ".kts"},
		DeclarationNodeTypes: []string{
			"class_declaration",
			"object_declaration",
		},
		OwnerNodeTypes: []string{
			"class_declaration",
			"object_declaration",
			"companion_object",
			"object_literal",
			"function_declaration",
			"anonymous_function",
			"lambda_literal",
			"secondary_constructor",
			"anonymous_initializer",
		},
		BuiltinTypes:      kotlinBuiltins,
		DefaultReturnType: "Unit",
		TestFileSuffixes:  []string{"Test", "Tests", "Spec", "IT"},
		TestDirs:          []string{"src/test", "src/androidTest", "src/testFixtures"},
	})
}

// kotlinBuiltins are the kotlin.* and kotlin.collections.* names that are
// implicitly imported and carry no project dependency.
var kotlinBuiltins = []string{
	// kotlin
	"Any", "Unit", "Nothing",
	"Boolean", "Char", "String", "CharSequence",
	"Byte", "Short", "Int", "Long", "Float", "Double", "Number",
	"UByte", "UShort", "UInt", "ULong",
	"Array", "BooleanArray", "ByteArray", "CharArray", "ShortArray",
	"IntArray", "LongArray", "FloatArray", "DoubleArray",
	"Pair", "Triple", "Comparable", "Enum", "Lazy", "Result",
	"Function", "Annotation",
	"Throwable", "Exception", "Error", "RuntimeException",
	"IllegalArgumentException", "IllegalStateException",
	"UnsupportedOperationException", "IndexOutOfBoundsException",
	"NullPointerException", "NoSuchElementException",
	// kotlin.collections
	"Collection", "MutableCollection", "Iterable", "MutableIterable",
	"Iterator", "MutableIterator", "List", "MutableList", "ArrayList",
	"Set", "MutableSet", "HashSet", "LinkedHashSet",
	"Map", "MutableMap", "HashMap", "LinkedHashMap",
	"Sequence",
}
