package sources

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	require.Greater(t, c.Len(), 0)

	regional := c.ByCategory("Regional")
	require.NotEmpty(t, regional)
	for _, s := range regional {
		assert.Equal(t, CategoryRegional, s.Category)
		assert.Equal(t, "puno", s.Department)
	}

	assert.Len(t, c.ByDepartment("lima"), 2)
	assert.Contains(t, c.Names(), "BBC Mundo")
}

func TestConfigMode(t *testing.T) {
	assert.Equal(t, ModeContainer, Config{Container: "div.item"}.Mode())
	assert.Equal(t, ModeFlat, Config{}.Mode())
	assert.Equal(t, "a", Config{}.AnchorSelector())
	assert.Equal(t, "h2 a", Config{Selector: " h2 a "}.AnchorSelector())
}

func TestParseImageSelector(t *testing.T) {
	cases := []struct {
		in   string
		want ImageSpec
	}{
		{"figure img", ImageSpec{Selector: "figure img"}},
		{"span.entry-thumb@data-img-url", ImageSpec{Selector: "span.entry-thumb", Attr: "data-img-url"}},
		{"div.thumb@style", ImageSpec{Selector: "div.thumb", Attr: "style"}},
		{`a[href="mailto:x@y.pe"]`, ImageSpec{Selector: `a[href="mailto:x@y.pe"]`}},
		{"", ImageSpec{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseImageSelector(tc.in), tc.in)
	}
}

func TestNormalizeDerivesBase(t *testing.T) {
	c := Config{Name: " X ", URL: "https://n.pe/seccion", Category: "Nacional"}.Normalize()
	assert.Equal(t, "X", c.Name)
	assert.Equal(t, "https://n.pe", c.Base)
	assert.Equal(t, CategoryNacional, c.Category)
}

func TestValidate(t *testing.T) {
	good := Config{Name: "N", URL: "https://n.pe", Base: "https://n.pe", Category: "nacional", Container: "div.item"}
	require.NoError(t, good.Validate())

	cases := map[string]Config{
		"name":         {URL: "https://n.pe", Base: "https://n.pe", Category: "nacional"},
		"url":          {Name: "N", URL: "/relative", Base: "https://n.pe", Category: "nacional"},
		"category":     {Name: "N", URL: "https://n.pe", Base: "https://n.pe", Category: "deportes"},
		"container":    {Name: "N", URL: "https://n.pe", Base: "https://n.pe", Category: "nacional", Container: "div[[["},
		"img_selector": {Name: "N", URL: "https://n.pe", Base: "https://n.pe", Category: "nacional", Container: "div", ImgSelector: "img[@src"},
	}
	for field, cfg := range cases {
		err := cfg.Validate()
		require.Error(t, err, field)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), field)
		assert.Equal(t, field, verr.Field)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	doc := `
sources:
  - name: Noticias Ica
    url: https://n.pe/ultimas
    base: https://n.pe
    category: Nacional
    container: div.item
    title_selector: h2 a
  - name: Legacy
    url: https://l.pe/
    category: internacional
    selector: h2 a
    selector_img: figure img
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, ModeContainer, all[0].Mode())
	assert.Equal(t, ModeFlat, all[1].Mode())
	assert.Equal(t, "https://l.pe", all[1].Base)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: X\n    url: nope\n    category: nacional\n"), 0o600))
	_, err := LoadCatalog(path)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
