// File: api/schemas/schemas_test.go
package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestExtractionSpec_ExclusionRules(t *testing.T) {
	spec := ExtractionSpec{
		ExcludeSelectors: []string{".ad", " .//span[@class='promo'] ", "", "//aside"},
		ExcludeXPaths:    []string{"./ancestor::footer", "  "},
	}

	rules := spec.ExclusionRules()
	assert.Equal(t, []ExclusionRule{
		{Kind: LocatorCSS, Value: ".ad"},
		{Kind: LocatorTreeQuery, Value: ".//span[@class='promo']"},
		{Kind: LocatorTreeQuery, Value: "//aside"},
		{Kind: LocatorTreeQuery, Value: "./ancestor::footer"},
	}, rules)
}

func TestExtractionSpec_ContainerLocator(t *testing.T) {
	tests := []struct {
		name string
		spec ExtractionSpec
		want string
	}{
		{"xpath wins", ExtractionSpec{ContainerXPath: "//li", ContainerSelector: "li"}, "//li"},
		{"css only", ExtractionSpec{ContainerSelector: ".review"}, ".review"},
		{"neither", ExtractionSpec{}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.ContainerLocator())
		})
	}
}

func TestExtractionSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ExtractionSpec
		wantErr string
	}{
		{
			name: "valid",
			spec: ExtractionSpec{Fields: []ExtractionField{{Name: "title"}, {Name: "link", Type: ValueHref}}},
		},
		{
			name: "no fields",
			spec: ExtractionSpec{ContainerSelector: "li"},
		},
		{
			name:    "duplicate names",
			spec:    ExtractionSpec{Fields: []ExtractionField{{Name: "a"}, {Name: "a"}}},
			wantErr: "duplicate field name 'a'",
		},
		{
			name:    "attribute without name",
			spec:    ExtractionSpec{Fields: []ExtractionField{{Name: "rating", Type: ValueAttribute}}},
			wantErr: "attribute name is required",
		},
		{
			name:    "unknown type",
			spec:    ExtractionSpec{Fields: []ExtractionField{{Name: "x", Type: "html"}}},
			wantErr: "unknown type 'html'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTargetDescriptor(t *testing.T) {
	assert.False(t, TargetDescriptor{ExpectedTag: "a"}.Valid())
	assert.False(t, TargetDescriptor{ExpectedTag: "a", ExpectedText: "  "}.Valid())
	assert.True(t, TargetDescriptor{SemanticName: "author"}.Valid())
	assert.True(t, TargetDescriptor{ExpectedTag: "BUTTON", ExpectedText: "Sign up"}.Valid())
	assert.Equal(t, "button", TargetDescriptor{ExpectedTag: "BUTTON", ExpectedText: "Sign up"}.Requested())

	assert.Equal(t, "#go", TargetDescriptor{PrimaryLocator: "//button", CSSFallback: "#go"}.Requested())
	assert.Equal(t, "//button", TargetDescriptor{PrimaryLocator: "//button"}.Requested())

	field := ExtractionField{Name: "price", XPath: ".//b", Selector: "b.price"}
	assert.Equal(t, TargetDescriptor{PrimaryLocator: ".//b", CSSFallback: "b.price", SemanticName: "price"}, field.Target())
	assert.Equal(t, ValueText, field.Kind())
}

func TestRecord_MarshalJSONKeepsDeclarationOrder(t *testing.T) {
	rec := NewRecord([]string{"zeta", "alpha", "mid"}, []*string{strp("1"), nil, strp(`q"uote`)})

	data, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"1","alpha":null,"mid":"q\"uote"}`, string(data))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, rec.Keys())

	v, ok := rec.Get("alpha")
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = rec.Get("missing")
	assert.False(t, ok)
}

func TestResult_ShapeFollowsContainerCount(t *testing.T) {
	one := NewResult([]Record{NewRecord([]string{"a"}, []*string{strp("x")})})
	data, err := one.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x"}`, string(data))
	_, isRecord := one.Value().(Record)
	assert.True(t, isRecord)

	two := NewResult([]Record{
		NewRecord([]string{"a"}, []*string{strp("x")}),
		NewRecord([]string{"a"}, []*string{nil}),
	})
	data, err = two.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a":"x"},{"a":null}]`, string(data))
	recs, isSlice := two.Value().([]Record)
	assert.True(t, isSlice)
	assert.Len(t, recs, 2)

	empty := NewResult(nil)
	data, err = empty.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestLoadSpec_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "reviews.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
containerSelector: .review
multiple: true
excludeSelectors: [".sponsored"]
fields:
  - name: author
  - name: link
    selector: a
    type: href
unknownKey: ignored
`), 0o600))

	spec, err := LoadSpec(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, ".review", spec.ContainerSelector)
	assert.True(t, spec.Multiple)
	require.Len(t, spec.Fields, 2)
	assert.Equal(t, ValueHref, spec.Fields[1].Type)
	assert.Equal(t, []string{".sponsored"}, spec.ExcludeSelectors)

	jsonPath := filepath.Join(dir, "reviews.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"containerXpath":"//li","fields":[{"name":"title","xpath":".//h2/text()"}]}`), 0o600))

	spec, err = LoadSpec(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "//li", spec.ContainerXPath)
	assert.Equal(t, ".//h2/text()", spec.Fields[0].XPath)

	_, err = LoadSpec(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDecodeStep(t *testing.T) {
	step, err := DecodeStep([]byte(`{"type":"click","cssSelector":"#go","xpath":"id('go')","elementTag":"BUTTON","screenshot":"ignored"}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, StepClick, step.Type)
	assert.Equal(t, TargetDescriptor{PrimaryLocator: "id('go')", CSSFallback: "#go", ExpectedTag: "BUTTON"}, step.Target())

	step, err = DecodeStep([]byte("type: extract_dom_content\ncontainerSelector: .card\nfields:\n  - name: title\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, ".card", step.ContainerSelector)
	require.Len(t, step.Fields, 1)

	_, err = DecodeStep([]byte(`{"type":"extract_dom_content","fields":[{"name":"a"},{"name":"a"}]}`), FormatJSON)
	assert.ErrorContains(t, err, "invalid extraction step")

	step, err = DecodeStep([]byte(`{"type":"extract_dom_content","containerSelector":".card"}`), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, step.Fields)

	_, err = DecodeStep([]byte(`{}`), FormatJSON)
	assert.ErrorContains(t, err, "step type is required")
}
