package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/DeusData/declgraph/internal/lang"
	"github.com/DeusData/declgraph/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	a, err := New(lang.Kotlin, nil, opts)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func src(path, content string) SourceFile {
	return SourceFile{Path: path, Content: []byte(content)}
}

var userServiceFiles = []SourceFile{
	src("app/User.kt", `package app

data class User(val id: Int)
`),
	src("app/service/UserService.kt", `package app.service

import app.User

class UserService {
    fun get(): User = TODO()
}
`),
}

func TestImportedTypeGetsUsedBy(t *testing.T) {
	a := newAnalyzer(t, Options{})
	res, err := a.Run(context.Background(), userServiceFiles)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	user, ok := res.Graph.Get("app.User")
	require.True(t, ok)
	assert.Equal(t, []string{"app.service.UserService"}, user.UsedBy)
	assert.Empty(t, user.Uses, "Int is built in")

	svc, ok := res.Graph.Get("app.service.UserService")
	require.True(t, ok)
	assert.Equal(t, []string{"app.User"}, svc.Uses)
	assert.Empty(t, svc.UsedBy)
	assert.Empty(t, res.Conflicts)
}

func TestWildcardImportResolves(t *testing.T) {
	a := newAnalyzer(t, Options{})
	res, err := a.Run(context.Background(), []SourceFile{
		src("app/models/Order.kt", "package app.models\n\nclass Order\n"),
		src("app/billing/Invoice.kt", `package app.billing

import app.models.*

class Invoice {
    val order: Order? = null
}
`),
	})
	require.NoError(t, err)

	inv, ok := res.Graph.Get("app.billing.Invoice")
	require.True(t, ok, "a one-line interface body in the same file is not a parse error")
	assert.Len(t, res.ParseErrors(), 1, "only app/Broken.kt fails")
	assert.Equal(t, []string{"app.models.Order"}, inv.Uses)
	order, _ := res.Graph.Get("app.models.Order")
	assert.Equal(t, []string{"app.billing.Invoice"}, order.UsedBy)
}

func TestUnparseableFileLeavesSiblingsIntact(t *testing.T) {
	a := newAnalyzer(t, Options{})
	files := append([]SourceFile{src("app/Broken.kt", "package app\n\nclass Broken {{{ fun (((\n")}, userServiceFiles...)
	res, err := a.Run(context.Background(), files)
	require.NoError(t, err, "a parse failure never aborts the batch")
	require.Len(t, res.Files, 3)

	broken := res.Files[0]
	assert.Equal(t, "app/Broken.kt", broken.Path)
	assert.True(t, strings.HasPrefix(broken.ParseError, "syntax error at "), broken.ParseError)
	assert.NotNil(t, broken.Declarations)
	assert.Empty(t, broken.Declarations)
	assert.Len(t, res.ParseErrors(), 1)

	for _, f := range res.Files[1:] {
		assert.Empty(t, f.ParseError)
		assert.Len(t, f.Declarations, 1)
	}
	user, _ := res.Graph.Get("app.User")
	assert.Equal(t, []string{"app.service.UserService"}, user.UsedBy)
	_, ok := res.Graph.Get("app.Broken")
	assert.False(t, ok)
}

func TestSameLineBodiesParse(t *testing.T) {
	a := newAnalyzer(t, Options{})
	sources := map[string]string{
		"app/A.kt":       "package app\n\nclass A { val x: Int = 1 }\n",
		"app/Config.kt":  "package app\n\nobject Config { const val NAME = \"n\" }\n",
		"app/Billing.kt": "package app\n\ninterface Billable { fun bill(lines: List<Line>): Receipt }\n",
		"app/Qty.kt":     "package app\n\ndata class Qty(val n: Int) { fun twice() = n * 2 }\n",
	}
	for path, content := range sources {
		r := a.AnalyzeFile(src(path, content))
		assert.Empty(t, r.ParseError, path)
		assert.Len(t, r.Declarations, 1, path)
	}

	billable := a.AnalyzeFile(src("app/Billing.kt", sources["app/Billing.kt"])).Declarations[0]
	assert.Equal(t, []string{"app.Line", "app.Receipt"}, billable.Uses)
}

func TestMetaAnnotatedAnnotationClass(t *testing.T) {
	a := newAnalyzer(t, Options{})
	r := a.AnalyzeFile(src("app/Marker.kt", "package app\n\n@Target(AnnotationTarget.CLASS)\nannotation class Marker\n"))
	assert.Empty(t, r.ParseError)
	require.Len(t, r.Declarations, 1)
	assert.Equal(t, "app.Marker", r.Declarations[0].FQN)
	assert.Equal(t, model.KindAnnotation, r.Declarations[0].Kind)
}

func TestTolerateSyntaxErrors(t *testing.T) {
	a := newAnalyzer(t, Options{TolerateSyntaxErrors: true})
	r := a.AnalyzeFile(src("app/Broken.kt", "package app\n\nclass Broken {{{ fun (((\n"))
	assert.Empty(t, r.ParseError)
	require.NotEmpty(t, r.Diagnostics)
	assert.Contains(t, r.Diagnostics[0], "syntax error at")
	assert.Equal(t, "app", r.PackageName)
}

func TestTestFilesSkipped(t *testing.T) {
	a := newAnalyzer(t, Options{IsTestFile: DefaultTestFilePredicate(lang.Kotlin)})
	res, err := a.Run(context.Background(), []SourceFile{
		src("app/User.kt", "package app\n\nclass User\n"),
		src("app/UserTest.kt", "package app\n\nclass UserTest(val u: User)\n"),
	})
	require.NoError(t, err)
	assert.False(t, res.Files[0].Skipped)
	assert.True(t, res.Files[1].Skipped)
	assert.Empty(t, res.Files[1].Declarations)

	user, _ := res.Graph.Get("app.User")
	assert.Empty(t, user.UsedBy)
	assert.Equal(t, 1, res.Graph.Len())
}

func TestDuplicateDeclarationsReported(t *testing.T) {
	a := newAnalyzer(t, Options{})
	res, err := a.Run(context.Background(), []SourceFile{
		src("app/a/Order.kt", "package app\n\nclass Order\n"),
		src("app/b/Order.kt", "package app\n\nclass Order\n"),
	})
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "app.Order", res.Conflicts[0].FQN)
	assert.Equal(t, []string{"app/a/Order.kt", "app/b/Order.kt"}, res.Conflicts[0].Paths)
	assert.Len(t, res.Graph.Duplicates("app.Order"), 2)
}

func corpus() []SourceFile {
	return []SourceFile{
		userServiceFiles[0],
		userServiceFiles[1],
		src("app/models/Order.kt", `package app.models

import app.User

sealed class Order(val owner: User) : Comparable<Order>
`),
		src("app/models/Line.kt", `package app.models

data class Line(val order: Order, val qty: Int = 1)
`),
		src("app/billing/Invoice.kt", `package app.billing

import app.models.*
import app.service.UserService as Users

interface Billable { fun bill(lines: List<Line>): Receipt }

class Invoice(private val users: Users) : Base(), Billable {
    override fun bill(lines: List<Line>): Receipt = TODO()
}
`),
		src("app/billing/Receipt.kt", "package app.billing\n\nclass Receipt\n"),
		src("app/Broken.kt", "package app\nclass {{{\n"),
	}
}

func snapshotJSON(t *testing.T, res *Result) string {
	t.Helper()
	b, err := json.Marshal(res.Graph.Snapshot())
	require.NoError(t, err)
	return string(b)
}

func TestOrderIndependentAndDeterministic(t *testing.T) {
	files := corpus()
	base := newAnalyzer(t, Options{Workers: 1})
	first, err := base.Run(context.Background(), files)
	require.NoError(t, err)
	want := snapshotJSON(t, first)

	again, err := base.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, want, snapshotJSON(t, again), "identical input must give identical output")
	assert.Equal(t, first.Files, again.Files)

	rng := rand.New(rand.NewSource(42))
	for i, workers := range []int{2, 3, 8, 16} {
		shuffled := append([]SourceFile(nil), files...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		a := newAnalyzer(t, Options{Workers: workers})
		res, err := a.Run(context.Background(), shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, snapshotJSON(t, res), "run %d with %d workers", i, workers)
	}
}

func TestGraphInvariants(t *testing.T) {
	a := newAnalyzer(t, Options{Workers: 4})
	res, err := a.Run(context.Background(), corpus())
	require.NoError(t, err)

	for _, d := range res.Graph.Declarations() {
		assert.NotContains(t, d.Uses, d.FQN, "self loop in %s", d.FQN)
		for _, target := range d.Uses {
			if b, ok := res.Graph.Get(target); ok {
				assert.Contains(t, b.UsedBy, d.FQN)
			}
		}
		for _, user := range d.UsedBy {
			u, ok := res.Graph.Get(user)
			require.True(t, ok)
			assert.Contains(t, u.Uses, d.FQN)
		}
	}

	inv, ok := res.Graph.Get("app.billing.Invoice")
	require.True(t, ok, "a one-line interface body in the same file is not a parse error")
	assert.Len(t, res.ParseErrors(), 1, "only app/Broken.kt fails")
	assert.Equal(t, []string{
		"app.models.Base",
		"app.models.Billable",
		"app.models.Line",
		"app.models.Receipt",
		"app.service.UserService",
	}, inv.Uses, "a wildcard import wins over the file's own package")
}

func TestRunCancelled(t *testing.T) {
	a := newAnalyzer(t, Options{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := a.Run(ctx, corpus())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Nil(t, res.Graph)
	assert.LessOrEqual(t, len(res.Files), len(corpus()))
}

func TestRunEmpty(t *testing.T) {
	a := newAnalyzer(t, Options{})
	res, err := a.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Equal(t, 0, res.Graph.Len())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	a := newAnalyzer(t, Options{Metrics: m, IsTestFile: DefaultTestFilePredicate(lang.Kotlin)})

	_, err := a.Run(context.Background(), []SourceFile{
		src("app/User.kt", "package app\n\nclass User\nclass Account\n"),
		src("app/UserSpec.kt", "package app\n\nclass UserSpec\n"),
		src("app/Broken.kt", "package app\nclass {{{\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesAnalyzed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Declarations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GraphNodes))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Conflicts))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestPackageDirectoryDiagnostic(t *testing.T) {
	a := newAnalyzer(t, Options{})
	r := a.AnalyzeFile(src("lib/Thing.kt", "package app.other\n\nclass Thing\n"))
	assert.Empty(t, r.ParseError)
	require.Len(t, r.Diagnostics, 1)
	assert.Contains(t, r.Diagnostics[0], "app.other")
	assert.Len(t, r.ContentHash, 16)
}

func TestUnsupportedLanguage(t *testing.T) {
	_, err := New(lang.Language("cobol"), nil, Options{})
	assert.Error(t, err)
}
