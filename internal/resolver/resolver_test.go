// internal/resolver/resolver_test.go
package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/domharvest/api/schemas"
	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/browser/static"
	"github.com/xkilldash9x/domharvest/internal/mocks"
)

const catalogPage = `<html><body>
<div id="main">
  <h2 class="title">Dune</h2>
  <span class="price">  12.50 </span>
  <a class="link" href="/books/dune">details</a>
  <p class="book-author">Frank Herbert</p>
  <button type="button"> Buy   now </button>
</div>
<div id="side"><span class="price">3.00</span></div>
</body></html>`

func newStatic(t *testing.T, markup string) *static.Driver {
	t.Helper()
	d, err := static.NewFromHTML(zaptest.NewLogger(t), markup)
	require.NoError(t, err)
	return d
}

func opts() Options { return Options{Timeout: time.Second} }

func TestResolveOne_StrategyOrder(t *testing.T) {
	d := newStatic(t, catalogPage)
	r := New(d, zaptest.NewLogger(t))
	ctx := context.Background()

	tests := []struct {
		name         string
		desc         schemas.TargetDescriptor
		wantStrategy StrategyTag
		wantSelector string
		wantText     string
	}{
		{
			name:         "legacy id locator wins",
			desc:         schemas.TargetDescriptor{PrimaryLocator: "id('main')/span", CSSFallback: "#side .price"},
			wantStrategy: StrategyXPath,
			wantSelector: "//*[@id='main']/span",
			wantText:     "12.50",
		},
		{
			name:         "malformed xpath falls back to css",
			desc:         schemas.TargetDescriptor{PrimaryLocator: "//div[", CSSFallback: "#side .price"},
			wantStrategy: StrategyCSS,
			wantSelector: "#side .price",
			wantText:     "3.00",
		},
		{
			name:         "missing xpath falls back to css",
			desc:         schemas.TargetDescriptor{PrimaryLocator: "//table", CSSFallback: "h2.title"},
			wantStrategy: StrategyCSS,
			wantSelector: "h2.title",
			wantText:     "Dune",
		},
		{
			name:         "tag and text hint",
			desc:         schemas.TargetDescriptor{CSSFallback: "button.buy", ExpectedTag: "BUTTON", ExpectedText: "Buy now"},
			wantStrategy: StrategyHint,
			wantSelector: ".//button[normalize-space(.)='Buy now']",
			wantText:     "Buy   now",
		},
		{
			name:         "generic from semantic name",
			desc:         schemas.TargetDescriptor{SemanticName: "book_author"},
			wantStrategy: StrategyGeneric,
			wantSelector: `[class*="book-author"]`,
			wantText:     "Frank Herbert",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.ResolveOne(ctx, nil, tt.desc, opts())
			require.True(t, out.Found())
			assert.Equal(t, tt.wantStrategy, out.Strategy)
			assert.Equal(t, tt.wantSelector, out.Selector)
			assert.Equal(t, KindLive, out.Element.Kind())

			text, err := out.Element.Text(ctx, d)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestResolveOne_ValueQueries(t *testing.T) {
	d := newStatic(t, catalogPage)
	r := New(d, zaptest.NewLogger(t))
	ctx := context.Background()

	t.Run("text node becomes a wrapper", func(t *testing.T) {
		out := r.ResolveOne(ctx, nil, schemas.TargetDescriptor{PrimaryLocator: "//span[@class='price']/text()"}, opts())
		require.True(t, out.Found())
		assert.Equal(t, StrategyXPath, out.Strategy)
		assert.Equal(t, KindText, out.Element.Kind())
		assert.Nil(t, out.Element.Node())

		text, err := out.Element.Text(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, "12.50", text)
	})

	t.Run("attribute value becomes a wrapper", func(t *testing.T) {
		out := r.ResolveOne(ctx, nil, schemas.TargetDescriptor{PrimaryLocator: "//a[@class='link']/@href"}, opts())
		require.True(t, out.Found())
		text, err := out.Element.Text(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, "/books/dune", text)
	})

	t.Run("empty value is a miss", func(t *testing.T) {
		out := r.ResolveOne(ctx, nil, schemas.TargetDescriptor{PrimaryLocator: "//a/@title"}, opts())
		assert.False(t, out.Found())
		assert.Equal(t, StrategyNone, out.Strategy)
	})
}

func TestResolveOne_Scoped(t *testing.T) {
	d := newStatic(t, catalogPage)
	r := New(d, zaptest.NewLogger(t))
	ctx := context.Background()

	side := r.ResolveAll(ctx, nil, schemas.LocatorCSS, "#side")
	require.Len(t, side, 1)

	out := r.ResolveOne(ctx, side[0].Node(), schemas.TargetDescriptor{PrimaryLocator: "//span"}, opts())
	require.True(t, out.Found())
	text, err := out.Element.Text(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "3.00", text, "tree queries are rooted at the scope")

	miss := r.ResolveOne(ctx, side[0].Node(), schemas.TargetDescriptor{SemanticName: "title"}, opts())
	assert.False(t, miss.Found())
}

func TestRequire(t *testing.T) {
	d := newStatic(t, catalogPage)
	r := New(d, zaptest.NewLogger(t))

	t.Run("miss", func(t *testing.T) {
		out, err := r.Require(context.Background(), nil, schemas.TargetDescriptor{CSSFallback: "#nope"}, opts())
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, StrategyNone, out.Strategy)
	})

	t.Run("invalid descriptor", func(t *testing.T) {
		_, err := r.Require(context.Background(), nil, schemas.TargetDescriptor{ExpectedTag: "div"}, opts())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tag and text hints alone are enough", func(t *testing.T) {
		out, err := r.Require(context.Background(), nil, schemas.TargetDescriptor{ExpectedTag: "button", ExpectedText: "Buy now"}, opts())
		require.NoError(t, err)
		assert.Equal(t, StrategyHint, out.Strategy)
	})

	t.Run("double-quoted legacy id", func(t *testing.T) {
		out, err := r.Require(context.Background(), nil, schemas.TargetDescriptor{PrimaryLocator: `id("side")/span`}, opts())
		require.NoError(t, err)
		assert.Equal(t, StrategyXPath, out.Strategy)
		assert.Equal(t, "//*[@id='side']/span", out.Selector)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Require(ctx, nil, schemas.TargetDescriptor{CSSFallback: "h2"}, opts())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestAttempt_FailuresAreMisses(t *testing.T) {
	late := mocks.Node("late")

	t.Run("timeout moves on to the next strategy", func(t *testing.T) {
		m := mocks.NewMockDriver()
		m.On("QueryXPath", mock.Anything, nil, "//slow").
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(nil, context.DeadlineExceeded)
		m.On("QueryCSS", mock.Anything, nil, ".fast").Return([]browser.Node{late}, nil)

		r := New(m, zaptest.NewLogger(t))
		out := r.ResolveOne(context.Background(), nil,
			schemas.TargetDescriptor{PrimaryLocator: "//slow", CSSFallback: ".fast"},
			Options{Timeout: 20 * time.Millisecond})

		require.True(t, out.Found())
		assert.Equal(t, StrategyCSS, out.Strategy)
		m.AssertExpectations(t)
	})

	t.Run("panic moves on to the next strategy", func(t *testing.T) {
		m := mocks.NewMockDriver()
		m.On("QueryXPath", mock.Anything, nil, "//boom").Run(func(mock.Arguments) { panic("boom") })
		m.On("QueryCSS", mock.Anything, nil, ".fast").Return([]browser.Node{late}, nil)

		r := New(m, zaptest.NewLogger(t))
		out := r.ResolveOne(context.Background(), nil,
			schemas.TargetDescriptor{PrimaryLocator: "//boom", CSSFallback: ".fast"}, opts())

		require.True(t, out.Found())
		assert.Equal(t, StrategyCSS, out.Strategy)
	})
}

func TestAttempt_Polling(t *testing.T) {
	m := mocks.NewMockDriver()
	m.On("QueryCSS", mock.Anything, nil, ".late").Return([]browser.Node{}, nil).Twice()
	m.On("QueryCSS", mock.Anything, nil, ".late").Return([]browser.Node{mocks.Node("late")}, nil)

	r := New(m, zaptest.NewLogger(t))
	out := r.ResolveOne(context.Background(), nil, schemas.TargetDescriptor{CSSFallback: ".late"},
		Options{Timeout: 2 * time.Second, PollInterval: 5 * time.Millisecond})

	require.True(t, out.Found())
	assert.Equal(t, "late", out.Element.String())
	m.AssertNumberOfCalls(t, "QueryCSS", 3)
}

func TestResolveAll(t *testing.T) {
	d := newStatic(t, catalogPage)
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(d, zap.New(core))
	ctx := context.Background()

	assert.Len(t, r.ResolveAll(ctx, nil, schemas.LocatorCSS, "span.price"), 2)
	assert.Len(t, r.ResolveAll(ctx, nil, schemas.LocatorTreeQuery, "//div[@id]"), 2)
	assert.Empty(t, r.ResolveAll(ctx, nil, schemas.LocatorCSS, ""))

	values := r.ResolveAll(ctx, nil, schemas.LocatorTreeQuery, "//h2/text()")
	require.Len(t, values, 1)
	assert.Equal(t, KindText, values[0].Kind())

	assert.Empty(t, r.ResolveAll(ctx, nil, schemas.LocatorCSS, "div[[["))
	assert.Empty(t, r.ResolveAll(ctx, nil, schemas.LocatorTreeQuery, "//div["))
	assert.Equal(t, 2, logs.FilterMessage("Locator query failed.").Len())
}

func TestGenericSelectors(t *testing.T) {
	assert.Nil(t, GenericSelectors("  "))
	assert.Equal(t, []string{
		`[class*="price"]`, `[id*="price"]`, `span[class*="price"]`, `div[class*="price"]`, `.price`, `#price`,
	}, GenericSelectors("Price"))

	withUnderscore := GenericSelectors("Book_Author")
	require.Len(t, withUnderscore, 12)
	assert.Equal(t, `[class*="book-author"]`, withUnderscore[0])
	assert.Equal(t, `[class*="book_author"]`, withUnderscore[6])
	assert.Equal(t, `#book_author`, withUnderscore[11])

	assert.Equal(t, ".unit-price", GenericSelectors("unit price")[4])
}

func TestHintQuery(t *testing.T) {
	q, ok := HintQuery("A", "  Read   more ")
	require.True(t, ok)
	assert.Equal(t, ".//a[normalize-space(.)='Read more']", q)

	q, ok = HintQuery("span", `it's "quoted"`)
	require.True(t, ok)
	assert.Equal(t, `.//span[normalize-space(.)=concat('it', "'", 's "quoted"')]`, q)

	for _, tc := range [][2]string{{"", "x"}, {"div", " "}, {"div]|//*[", "x"}} {
		_, ok := HintQuery(tc[0], tc[1])
		assert.False(t, ok, "tag=%q text=%q", tc[0], tc[1])
	}
}

func TestElement_TextWrapperSurface(t *testing.T) {
	ctx := context.Background()
	w := TextWrapper("  hello ")

	text, err := w.Text(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	for _, name := range []string{"textContent", "innerText"} {
		v, ok, err := w.Attribute(ctx, nil, name)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "hello", v)
	}
	_, ok, err := w.Attribute(ctx, nil, "href")
	require.NoError(t, err)
	assert.False(t, ok)

	var none Element
	assert.False(t, none.Found())
	_, err = none.Text(ctx, nil)
	assert.ErrorIs(t, err, browser.ErrNoNode)
	assert.False(t, Live(nil).Found())
}
