package category

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMapsAreIdempotent(t *testing.T) {
	maps, err := Default()
	require.NoError(t, err)

	for _, m := range []*Map{maps.Ethnicity, maps.Sex, maps.TestResults} {
		for _, canonical := range m.Canonical() {
			got, ok := m.Lookup(canonical)
			require.True(t, ok, "%s: %s", m.Name(), canonical)
			assert.Equal(t, canonical, got, m.Name())
		}
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	maps, err := Default()
	require.NoError(t, err)

	got, ok := maps.Sex.Lookup("fEmAlE")
	require.True(t, ok)
	assert.Equal(t, "F", got)

	assert.Equal(t, Unknown, maps.Sex.Resolve("robot"))
	_, ok = maps.TestResults.Lookup("rna detected (sars-cov-2)")
	assert.True(t, ok)
	assert.Equal(t, "", maps.TestResults.Resolve("garbage"))
}

func TestExtendEthnicity(t *testing.T) {
	base := NewMap("ethnicity", map[string]string{"A": "White", "H": "Asian"}, Unknown)
	observed := []string{"Mixed - other", "Multiple ethnic groups", "Mixed White and Asian", "WHITE - other", "H", "martian"}

	ext := ExtendEthnicity(base, observed)

	assert.Equal(t, Multiple, ext.Resolve("mixed - other"))
	assert.Equal(t, Multiple, ext.Resolve("Multiple ethnic groups"))
	assert.Equal(t, White, ext.Resolve("Mixed White and Asian"))
	assert.Equal(t, White, ext.Resolve("white - other"))
	assert.Equal(t, "Asian", ext.Resolve("h"))

	got, ok := ext.Lookup("martian")
	require.True(t, ok)
	assert.Equal(t, Unknown, got)

	// the base map is untouched
	_, ok = base.Lookup("martian")
	assert.False(t, ok)
	_, ok = base.Lookup("mixed - other")
	assert.False(t, ok)
}

func TestMapsCloneIsIndependent(t *testing.T) {
	maps, err := Default()
	require.NoError(t, err)

	clone := maps.Clone()
	clone.Ethnicity.Set("zzz", White)

	_, ok := maps.Ethnicity.Lookup("zzz")
	assert.False(t, ok)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps.yaml")
	content := "ethnicity:\n  A: White\nsex:\n  Female: F\ntest_results:\n  POS: Positive\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	maps, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "White", maps.Ethnicity.Resolve("a"))
	assert.Equal(t, "Positive", maps.TestResults.Resolve("pos"))
}

func TestParseRejectsIncompleteMaps(t *testing.T) {
	_, err := Parse([]byte(`{"ethnicity": {"A": "White"}}`), "json")
	assert.Error(t, err)

	_, err = Parse([]byte(`{}`), "toml")
	assert.Error(t, err)
}
