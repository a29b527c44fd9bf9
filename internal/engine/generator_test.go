package engine_test

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbind/internal/engine"
	"github.com/roach88/eventbind/internal/host"
	"github.com/roach88/eventbind/internal/ir"
)

func saveDecl(t *testing.T) *ir.BindingDeclaration {
	return declare(t, "Doc.Save", []ir.ArgumentSpec{ir.PositionalRef{Index: 1}})
}

func TestGenerator_SameKeyReusesTemplate(t *testing.T) {
	gen := engine.NewGenerator()
	decl := saveDecl(t)

	h1, err := gen.Handler(engine.Request{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: decl})
	require.NoError(t, err)
	h2, err := gen.Handler(engine.Request{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: decl})
	require.NoError(t, err)

	assert.NotSame(t, h1, h2, "each instance is its own handler")
	assert.Same(t, h1.Template(), h2.Template())

	stats := gen.Stats()
	assert.Equal(t, int64(1), stats.Syntheses)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Entries)

	tmpl, ok := gen.Lookup(h1.Template().Signature())
	require.True(t, ok)
	assert.Same(t, h1.Template(), tmpl)
}

func TestGenerator_DistinctKeys(t *testing.T) {
	gen := engine.NewGenerator()

	reqs := []engine.Request{
		{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: saveDecl(t)},
		{Event: clickSig, Root: &noteModel{Doc: &note{}}, Decl: saveDecl(t)},
		{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: declare(t, "Doc.Record",
			[]ir.ArgumentSpec{ir.PositionalRef{Index: 1}, ir.NewLiteral(1, "1")})},
		{Event: reflect.TypeOf(func(string) {}), Root: &viewModel{Doc: &document{}},
			Decl: declare(t, "Doc.Save", []ir.ArgumentSpec{ir.PositionalRef{Index: 0}})},
	}
	for _, req := range reqs {
		_, err := gen.Handler(req)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, gen.Len())
	assert.Equal(t, int64(4), gen.Stats().Syntheses)
}

// Types that render alike are still distinct cache entries.
func TestGenerator_SameNamedLocalTypes(t *testing.T) {
	gen := engine.NewGenerator()
	decl := saveDecl(t)

	var first, second any
	{
		type vm struct{ Doc *document }
		first = &vm{Doc: &document{}}
	}
	{
		type vm struct{ Doc *document }
		second = &vm{Doc: &document{}}
	}
	require.True(t, reflect.TypeOf(first) != reflect.TypeOf(second))
	require.Equal(t, reflect.TypeOf(first).String(), reflect.TypeOf(second).String())

	h1, err := gen.Handler(engine.Request{Event: clickSig, Root: first, Decl: decl})
	require.NoError(t, err)
	h2, err := gen.Handler(engine.Request{Event: clickSig, Root: second, Decl: decl})
	require.NoError(t, err)

	assert.NotSame(t, h1.Template(), h2.Template())
	assert.Equal(t, 2, gen.Len())
	assert.Equal(t, int64(2), gen.Stats().Syntheses)
	assert.Equal(t, int64(0), gen.Stats().Hits)

	tmpl, ok := gen.Lookup(h2.Template().Signature())
	require.True(t, ok)
	assert.Same(t, h2.Template(), tmpl)
}

// A same-named type lacking the target method still fails resolution.
func TestGenerator_SameNamedTypeWithoutMethod(t *testing.T) {
	gen := engine.NewGenerator()
	decl := saveDecl(t)

	{
		type vm struct{ Doc *document }
		_, err := gen.Handler(engine.Request{Event: clickSig, Root: &vm{Doc: &document{}}, Decl: decl})
		require.NoError(t, err)
	}
	{
		type blank struct{}
		type vm struct{ Doc *blank }
		_, err := gen.Handler(engine.Request{Event: clickSig, Root: &vm{Doc: &blank{}}, Decl: decl})
		require.Error(t, err)
		assert.True(t, ir.IsMissingMethod(err))
	}
	assert.Equal(t, 1, gen.Len())
}

func TestGenerator_AnonymousRootTypes(t *testing.T) {
	gen := engine.NewGenerator()
	decl := saveDecl(t)

	_, err := gen.Handler(engine.Request{Event: clickSig, Root: &struct{ Doc *document }{Doc: &document{}}, Decl: decl})
	require.NoError(t, err)
	_, err = gen.Handler(engine.Request{Event: clickSig, Root: &struct{ Doc *note }{Doc: &note{}}, Decl: decl})
	require.NoError(t, err)
	_, err = gen.Handler(engine.Request{Event: clickSig, Root: &struct{ Doc *document }{Doc: &document{}}, Decl: decl})
	require.NoError(t, err)

	assert.Equal(t, 2, gen.Len())
	assert.Equal(t, int64(1), gen.Stats().Hits, "identical anonymous types are one type")
}

// Positional and literal arguments of the same type share one template;
// the argument plan belongs to the instance.
func TestGenerator_SharedTemplateDifferentPlans(t *testing.T) {
	gen := engine.NewGenerator()
	doc := &document{}
	root := &viewModel{Doc: doc}

	positional, err := gen.Handler(engine.Request{Event: clickSig, Root: root, Decl: saveDecl(t)})
	require.NoError(t, err)
	fixed, err := gen.Handler(engine.Request{Event: clickSig, Root: root,
		Decl: declare(t, "Doc.Save", []ir.ArgumentSpec{ir.NewLiteral("fixed", "`fixed`")})})
	require.NoError(t, err)

	assert.Same(t, positional.Template(), fixed.Template())

	positional.Invoke(nil, "from-event")
	fixed.Invoke(nil, "from-event")
	assert.Equal(t, []string{"from-event", "fixed"}, doc.Saved())
}

func TestGenerator_NoopPerEventType(t *testing.T) {
	gen := engine.NewGenerator()

	n1 := gen.Noop(clickSig)
	n2 := gen.Noop(clickSig)
	other := gen.Noop(reflect.TypeOf(func() {}))

	assert.Same(t, n1, n2)
	assert.NotSame(t, n1, other)
	assert.True(t, n1.IsNoop())
	assert.Nil(t, n1.Template())
	assert.Equal(t, clickSig, n1.Signature())

	h, err := gen.Handler(engine.Request{Event: clickSig, Root: nil, Decl: saveDecl(t)})
	require.NoError(t, err)
	assert.Same(t, n1, h)
	assert.Equal(t, 0, gen.Len())
}

func TestGenerator_ErrorsNotCached(t *testing.T) {
	gen := engine.NewGenerator()
	decl := declare(t, "Doc.Missing", []ir.ArgumentSpec{ir.PositionalRef{Index: 1}})

	for i := 0; i < 2; i++ {
		_, err := gen.Handler(engine.Request{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: decl})
		require.Error(t, err)
		assert.True(t, ir.IsMissingMethod(err))
	}
	assert.Equal(t, 0, gen.Len())
	assert.Equal(t, int64(2), gen.Stats().Misses)
	assert.Equal(t, int64(0), gen.Stats().Syntheses)
}

func TestGenerator_IndexOutOfRange(t *testing.T) {
	gen := engine.NewGenerator()
	decl := declare(t, "Doc.Save", []ir.ArgumentSpec{ir.PositionalRef{Index: 2, Raw: "$2"}})

	_, err := gen.Handler(engine.Request{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: decl})
	require.Error(t, err)
	assert.True(t, ir.IsIndexOutOfRange(err))
	assert.Contains(t, err.Error(), "$2")
	assert.Equal(t, int64(0), gen.Stats().Misses, "detected before any cache lookup")
}

func TestGenerator_CacheLimitAndPurge(t *testing.T) {
	gen := engine.NewGenerator(engine.WithCacheLimit(1))

	_, err := gen.Handler(engine.Request{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: saveDecl(t)})
	require.NoError(t, err)
	n := &note{}
	h, err := gen.Handler(engine.Request{Event: clickSig, Root: &noteModel{Doc: n}, Decl: saveDecl(t)})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.Len())
	assert.Equal(t, int64(2), gen.Stats().Syntheses)

	// An unstored template still works
	h.Invoke(nil, "kept")
	assert.Equal(t, []string{"kept"}, n.Lines())

	gen.Purge()
	assert.Equal(t, 0, gen.Len())

	_, err = gen.Handler(engine.Request{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: saveDecl(t)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), gen.Stats().Syntheses)
}

// Two goroutines firing for two distinct root types leave two independent,
// correct entries.
func TestGenerator_ConcurrentDistinctRootTypes(t *testing.T) {
	binder := engine.New()
	t.Cleanup(binder.Close)

	const fires = 200
	doc := &document{}
	n := &note{}

	elDoc := host.NewElement("a", host.WithRoot(&viewModel{Doc: doc}))
	clickDoc := elDoc.AddEvent("Click", clickSig)
	elNote := host.NewElement("b", host.WithRoot(&noteModel{Doc: n}))
	clickNote := elNote.AddEvent("Click", clickSig)

	var wg sync.WaitGroup
	run := func(el *host.Element, ev *host.Event, prefix string) {
		defer wg.Done()
		_, err := binder.BindMethod(el, "Click", "Doc.Save", "$1")
		if !assert.NoError(t, err) {
			return
		}
		for i := 0; i < fires; i++ {
			ev.Raise(nil, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	wg.Add(2)
	go run(elDoc, clickDoc, "doc")
	go run(elNote, clickNote, "note")
	wg.Wait()

	gen := binder.Generator()
	assert.Equal(t, 2, gen.Len())
	assert.Len(t, doc.Saved(), fires)
	assert.Len(t, n.Lines(), fires)
	for _, s := range doc.Saved() {
		assert.Contains(t, s, "doc")
	}
	for _, s := range n.Lines() {
		assert.Contains(t, s, "note")
	}

	rootTypes := map[reflect.Type]bool{}
	for _, b := range binder.Bindings() {
		tmpl := b.Handler().Template()
		require.NotNil(t, tmpl)
		rootTypes[tmpl.Signature().Root] = true
		assert.Equal(t, "Doc.Save", tmpl.Signature().Path)
	}
	assert.Len(t, rootTypes, 2)
}

// Many goroutines racing on one key may synthesize more than once, but all
// callers end up with the single stored template.
func TestGenerator_ConcurrentSameKey(t *testing.T) {
	gen := engine.NewGenerator()
	decl := saveDecl(t)

	const workers = 16
	templates := make([]*engine.Template, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := gen.Handler(engine.Request{Event: clickSig, Root: &viewModel{Doc: &document{}}, Decl: decl})
			if assert.NoError(t, err) {
				templates[i] = h.Template()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, gen.Len())
	for _, tmpl := range templates[1:] {
		assert.Same(t, templates[0], tmpl)
	}
	stats := gen.Stats()
	assert.GreaterOrEqual(t, stats.Syntheses, int64(1))
	assert.Equal(t, int64(workers), stats.Hits+stats.Misses)
}
