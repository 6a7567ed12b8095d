package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/declgraph/internal/lang"
	"github.com/DeusData/declgraph/internal/model"
	"github.com/DeusData/declgraph/internal/parser"
	"github.com/DeusData/declgraph/internal/resolve"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(resolve.New(lang.ForLanguage(lang.Kotlin).BuiltinTypes))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func extract(t *testing.T, e *Extractor, path, src string) FileDeclarations {
	t.Helper()
	source := []byte(src)
	tree, err := parser.Parse(lang.Kotlin, source)
	require.NoError(t, err)
	defer tree.Close()
	return e.Extract(path, tree, source)
}

func findDecl(t *testing.T, fd FileDeclarations, name string) model.Declaration {
	t.Helper()
	for _, d := range fd.Declarations {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("declaration %s not found among %d", name, len(fd.Declarations))
	return model.Declaration{}
}

const processorDelaySrc = `package app.delay

import app.core.Processor
import app.core.Clock
import lib.model.Settings as Config

@Serializable
internal data class ProcessorDelay(
    @Json val id: Int,
    private var delayMs: Long = 100L,
    val clock: Clock
) : BaseProcessor(), IProcessorDelay, Comparable<ProcessorDelay> {
    val name: String = "delay"
    var settings: Config? = null
    private val cache: Map<String, List<Record>> = emptyMap()

    fun process(input: Input, retries: Int = 3): Result<Output> {
        val local: Unknown = Unknown()
        return TODO()
    }

    @Deprecated("x")
    private fun reset() {}

    companion object {
        val DEFAULT: Hidden = Hidden()
        fun create(): ProcessorDelay = ProcessorDelay(1, 2, Clock())
    }

    class Nested(val n: NestedOnly)
}
`

func TestExtractProcessorDelay(t *testing.T) {
	e := newExtractor(t)
	fd := extract(t, e, "app/delay/ProcessorDelay.kt", processorDelaySrc)

	assert.Equal(t, "app.delay", fd.PackageName)
	assert.Equal(t, []string{"app.core.Processor", "app.core.Clock", "lib.model.Settings"}, fd.Imports)
	assert.Equal(t, map[string]string{"Config": "lib.model.Settings"}, fd.Aliases)
	require.Len(t, fd.Declarations, 1, "nested classes and companions are not top-level declarations")

	d := fd.Declarations[0]
	assert.Equal(t, "app.delay.ProcessorDelay", d.FQN)
	assert.Equal(t, "ProcessorDelay", d.Name)
	assert.Equal(t, model.KindDataClass, d.Kind)
	assert.Equal(t, "internal", d.Visibility)
	assert.Equal(t, []string{"@Serializable"}, d.Annotations)
	assert.Equal(t, "app/delay/ProcessorDelay.kt", d.Path)
	assert.Equal(t, 7, d.StartLine)

	assert.Equal(t, "app.delay.BaseProcessor", d.Extends)
	assert.Equal(t, []string{"app.delay.IProcessorDelay", "Comparable"}, d.Implements)

	require.Len(t, d.ConstructorParams, 3)
	assert.Equal(t, model.Variable{Name: "id", Type: "Int", Annotations: []string{"@Json"}, Visibility: "public"}, d.ConstructorParams[0])
	assert.Equal(t, model.Variable{Name: "delayMs", Type: "Long", Visibility: "private", DefaultValue: "100L", Mutable: true}, d.ConstructorParams[1])
	assert.Equal(t, "Clock", d.ConstructorParams[2].Type)

	require.Len(t, d.Members, 3, "companion and local properties are excluded")
	assert.Equal(t, model.Variable{Name: "name", Type: "String", Visibility: "public", DefaultValue: `"delay"`}, d.Members[0])
	assert.Equal(t, model.Variable{Name: "settings", Type: "Config?", Visibility: "public", DefaultValue: "null", Mutable: true}, d.Members[1])
	assert.Equal(t, "Map<String, List<Record>>", d.Members[2].Type)
	assert.Equal(t, "private", d.Members[2].Visibility)

	require.Len(t, d.Functions, 2, "companion functions are excluded")
	process := d.Functions[0]
	assert.Equal(t, "process", process.Name)
	assert.Equal(t, "Result<Output>", process.ReturnType)
	assert.Equal(t, "process(Input, Int)", process.Signature)
	require.Len(t, process.Parameters, 2)
	assert.Equal(t, "input", process.Parameters[0].Name)
	assert.Equal(t, "Input", process.Parameters[0].Type)
	assert.Empty(t, process.Parameters[0].DefaultValue)
	assert.Equal(t, "3", process.Parameters[1].DefaultValue)

	reset := d.Functions[1]
	assert.Equal(t, "reset", reset.Name)
	assert.Equal(t, "private", reset.Visibility)
	assert.Equal(t, []string{`@Deprecated("x")`}, reset.Annotations)
	assert.Equal(t, "Unit", reset.ReturnType)
	assert.Equal(t, "reset()", reset.Signature)

	assert.Equal(t, []string{
		"app.core.Clock",
		"app.delay.BaseProcessor",
		"app.delay.Hidden",
		"app.delay.IProcessorDelay",
		"app.delay.Input",
		"app.delay.NestedOnly",
		"app.delay.Output",
		"app.delay.Record",
		"lib.model.Settings",
	}, d.Uses, "companion and nested class types count, function locals do not")
	assert.NotContains(t, d.Uses, d.FQN)
	assert.NotContains(t, d.Uses, "app.delay.Unknown")
	assert.Empty(t, d.UsedBy)
}

func TestNestedTypesContributeReferences(t *testing.T) {
	e := newExtractor(t)
	fd := extract(t, e, "app/Impl.kt", `package app

class Impl<T> {
    val inner: Inner? = null

    class Inner(val dep: NestedDep, val t: T) : Base() {
        object Deeper {
            fun make(w: Widget): Inner = TODO()
        }
    }

    companion object {
        val DEFAULT: Widget = Widget()
    }

    fun build() {
        class Local(val l: LocalOnly)
    }
}
`)
	d := findDecl(t, fd, "Impl")
	require.Len(t, fd.Declarations, 1)
	assert.Equal(t, []string{"app.Base", "app.NestedDep", "app.Widget"}, d.Uses,
		"nested names and type parameters are not references")
}

func TestExtractKinds(t *testing.T) {
	e := newExtractor(t)
	fd := extract(t, e, "app/kinds/Kinds.kt", `package app.kinds

interface IProcessorDelay {
    fun delay(ms: Long): Unit
}
sealed class Shape
object Registry : Shape()
enum class Color { RED, GREEN }
annotation class Marker
open class Plain
private class Hidden

fun topLevel(): Int = 1
val constant = 3
`)
	want := map[string]model.Kind{
		"IProcessorDelay": model.KindInterface,
		"Shape":           model.KindSealedClass,
		"Registry":        model.KindObject,
		"Color":           model.KindEnum,
		"Marker":          model.KindAnnotation,
		"Plain":           model.KindClass,
		"Hidden":          model.KindClass,
	}
	require.Len(t, fd.Declarations, len(want))
	for _, d := range fd.Declarations {
		assert.Equal(t, want[d.Name], d.Kind, d.Name)
	}

	var order []string
	for _, d := range fd.Declarations {
		order = append(order, d.Name)
	}
	assert.Equal(t, []string{"IProcessorDelay", "Shape", "Registry", "Color", "Marker", "Plain", "Hidden"}, order)

	assert.Equal(t, "private", findDecl(t, fd, "Hidden").Visibility)
	assert.Equal(t, "public", findDecl(t, fd, "Plain").Visibility)
	assert.Equal(t, "app.kinds.Shape", findDecl(t, fd, "Registry").Extends)
	assert.Equal(t, []string{"app.kinds.Shape"}, findDecl(t, fd, "Registry").Uses)

	iface := findDecl(t, fd, "IProcessorDelay")
	require.Len(t, iface.Functions, 1)
	assert.Equal(t, "delay(Long)", iface.Functions[0].Signature)
	assert.Empty(t, iface.Uses)
}

func TestExtendsImplementsHeuristic(t *testing.T) {
	e := newExtractor(t)
	fd := extract(t, e, "app/Impl.kt", `package app

import lib.Base
import lib.Repository

class OnlyInterfaces : Runnable, Closeable
class CallFirst : Base(1), Runnable
class CallLast : Runnable, Base()
class Generic : Repository<User>()
class Delegated(impl: Runnable) : Runnable by impl
`)
	only := findDecl(t, fd, "OnlyInterfaces")
	assert.Empty(t, only.Extends)
	assert.Equal(t, []string{"app.Runnable", "app.Closeable"}, only.Implements)

	first := findDecl(t, fd, "CallFirst")
	assert.Equal(t, "lib.Base", first.Extends)
	assert.Equal(t, []string{"app.Runnable"}, first.Implements)

	last := findDecl(t, fd, "CallLast")
	assert.Equal(t, "lib.Base", last.Extends)
	assert.Equal(t, []string{"app.Runnable"}, last.Implements)

	generic := findDecl(t, fd, "Generic")
	assert.Equal(t, "lib.Repository", generic.Extends)
	assert.Equal(t, []string{"app.User", "lib.Repository"}, generic.Uses)

	delegated := findDecl(t, fd, "Delegated")
	assert.Empty(t, delegated.Extends)
	assert.Equal(t, []string{"app.Runnable"}, delegated.Implements)
}

func TestFunctionDetails(t *testing.T) {
	e := newExtractor(t)
	fd := extract(t, e, "app/Svc.kt", `package app

class Svc<E> {
    fun get(): User { TODO() }
    fun maybe(): User? = null
    fun none() {}
    fun <T> wrap(x: T, e: E): Box<T> = Box(x)
    fun defaults(a: Int = 1, b: String, c: List<Int> = listOf(1, 2)) {}
}
`)
	svc := findDecl(t, fd, "Svc")
	assert.Equal(t, []string{"E"}, svc.TypeParameters)
	require.Len(t, svc.Functions, 5)

	assert.Equal(t, "User", svc.Functions[0].ReturnType)
	assert.Equal(t, "User?", svc.Functions[1].ReturnType)
	assert.Equal(t, "Unit", svc.Functions[2].ReturnType)

	wrap := svc.Functions[3]
	assert.Equal(t, []string{"T"}, wrap.TypeParameters)
	assert.Equal(t, "Box<T>", wrap.ReturnType)
	assert.Equal(t, "wrap(T, E)", wrap.Signature)

	defaults := svc.Functions[4]
	require.Len(t, defaults.Parameters, 3)
	assert.Equal(t, "1", defaults.Parameters[0].DefaultValue)
	assert.Empty(t, defaults.Parameters[1].DefaultValue)
	assert.Equal(t, "listOf(1, 2)", defaults.Parameters[2].DefaultValue)

	assert.Equal(t, []string{"app.Box", "app.User"}, svc.Uses, "type parameters never become usages")
}

func TestWildcardImport(t *testing.T) {
	e := newExtractor(t)
	fd := extract(t, e, "app/billing/Invoice.kt", `package app.billing

import app.models.*

class Invoice(val order: Order)
`)
	assert.Equal(t, []string{"app.models.*"}, fd.Imports)
	inv := findDecl(t, fd, "Invoice")
	assert.Equal(t, []string{"app.models.Order"}, inv.Uses)
	assert.Equal(t, []string{"app.models.*"}, inv.Imports)
}

func TestBuiltinsOnly(t *testing.T) {
	e := newExtractor(t)
	fd := extract(t, e, "Plain.kt", `data class Point(val x: Int, val y: Int) {
    val tags: List<String> = emptyList()
    fun asMap(): Map<String, Int> = mapOf()
}
`)
	d := findDecl(t, fd, "Point")
	assert.Equal(t, "Point", d.FQN, "no package means a bare FQN")
	assert.Empty(t, d.PackageName)
	require.NotNil(t, d.Uses)
	assert.Empty(t, d.Uses)
}

func TestMalformedInputDoesNotPanic(t *testing.T) {
	e := newExtractor(t)
	inputs := []string{
		"",
		"package",
		"class {{{ fun (((",
		"class Ok(val a: ) : , {\n fun ( = \n}",
		"import\nimport a.\nclass A : B(",
	}
	for _, src := range inputs {
		assert.NotPanics(t, func() { extract(t, e, "bad.kt", src) }, src)
	}
	var fd FileDeclarations
	assert.NotPanics(t, func() { fd = e.Extract("nil.kt", nil, nil) })
	assert.Empty(t, fd.Declarations)
}

func TestExtractIsDeterministic(t *testing.T) {
	e := newExtractor(t)
	a := extract(t, e, "app/delay/ProcessorDelay.kt", processorDelaySrc)
	b := extract(t, e, "app/delay/ProcessorDelay.kt", processorDelaySrc)
	assert.Equal(t, a, b)
}

func TestAnnotationClassWithMetaAnnotations(t *testing.T) {
	e := newExtractor(t)
	fd := extract(t, e, "app/meta/Marker.kt", `package app.meta

class Before

@Target(AnnotationTarget.CLASS)
annotation class Marker

class After
`)
	var names []string
	for _, d := range fd.Declarations {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Before", "Marker", "After"}, names, "source order is kept")

	marker := findDecl(t, fd, "Marker")
	assert.Equal(t, "app.meta.Marker", marker.FQN)
	assert.Equal(t, model.KindAnnotation, marker.Kind)
	assert.Equal(t, "public", marker.Visibility)
	assert.Equal(t, []string{"@Target(AnnotationTarget.CLASS)"}, marker.Annotations)
	assert.Equal(t, 5, marker.StartLine)
	assert.Empty(t, marker.Uses)
}

func TestAnnotationClassRemainder(t *testing.T) {
	tests := []struct {
		text, visibility, name string
	}{
		{"annotation class Marker", "", "Marker"},
		{"internal annotation class Tag(val v: String)", "internal", "Tag"},
		{"annotation  class\tSpaced", "", "Spaced"},
	}
	for _, tt := range tests {
		sm := annotationClassRe.FindStringSubmatch(tt.text)
		require.NotNil(t, sm, tt.text)
		assert.Equal(t, tt.visibility, sm[1], tt.text)
		assert.Equal(t, tt.name, sm[2], tt.text)
	}
	assert.Nil(t, annotationClassRe.FindStringSubmatch("annotation + classes"))
	assert.Nil(t, annotationClassRe.FindStringSubmatch("listOf(annotation class X)"))
}
