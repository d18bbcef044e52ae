package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatchSpecForms(t *testing.T) {
	cases := []struct {
		raw     string
		name    string
		build   string
		wantErr bool
	}{
		{raw: "foo", name: "foo"},
		{raw: "foo 1.0", name: "foo"},
		{raw: "foo 1.0 0", name: "foo", build: "0"},
		{raw: "foo>=1.0,<2.0", name: "foo"},
		{raw: "foo==1.0", name: "foo"},
		{raw: "", wantErr: true},
		{raw: "bad/name!", wantErr: true},
	}

	for _, tc := range cases {
		spec, err := ParseMatchSpec(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.name, spec.Name, tc.raw)
		assert.Equal(t, tc.build, spec.Build, tc.raw)
	}
}

func TestParseVirtualPackageDefaults(t *testing.T) {
	vp, err := ParseVirtualPackage("__unix")
	require.NoError(t, err)
	assert.Equal(t, "__unix", vp.Name)
	assert.Equal(t, "0", vp.Version)
	assert.Equal(t, "0", vp.Build)

	vp, err = ParseVirtualPackage("__glibc=2.17")
	require.NoError(t, err)
	assert.Equal(t, "2.17", vp.Version)
	assert.Equal(t, "0", vp.Build)

	_, err = ParseVirtualPackage("__a=1=2=3")
	assert.ErrorContains(t, err, "too many equals signs")
}

func TestParseChannelExplicitSubdirs(t *testing.T) {
	ch, err := DefaultAlias.ParseChannel("conda-forge/linux-64,noarch")
	require.NoError(t, err)
	assert.Equal(t, []string{"linux-64", "noarch"}, ch.Subdirs)
	assert.Equal(t, "https://conda.anaconda.org/conda-forge", ch.BaseURL)
}

func TestParseChannelDefaultSubdirsExpandWithPlatform(t *testing.T) {
	ch, err := DefaultAlias.ParseChannel("conda-forge")
	require.NoError(t, err)
	assert.Nil(t, ch.Subdirs)

	pairs := ExpandPairs([]Channel{ch}, Platform("linux-64"))
	require.Len(t, pairs, 2)
	assert.Equal(t, "linux-64", pairs[0].Subdir)
	assert.Equal(t, "noarch", pairs[1].Subdir)
}

func TestParsePlatformRejectsUnknown(t *testing.T) {
	_, err := ParsePlatform("asdfasdf")
	assert.ErrorContains(t, err, "asdfasdf")

	p, err := ParsePlatform("linux-64")
	require.NoError(t, err)
	assert.Equal(t, Platform("linux-64"), p)
}

// TestValidationIsIdempotent is property P5: the same inputs must yield the
// same accept/reject classification every time.
func TestValidationIsIdempotent(t *testing.T) {
	raw := []string{"foo>=1.0", "in/valid", "bar"}

	_, errs1 := ParseMatchSpecs(raw)
	_, errs2 := ParseMatchSpecs(raw)

	require.Len(t, errs1, 1)
	require.Len(t, errs2, 1)
	assert.Equal(t, errs1[0], errs2[0])
}

func TestParseMatchSpecsAccumulatesAllFailures(t *testing.T) {
	_, errs := ParseMatchSpecs([]string{"good", "in/valid", "also/bad"})
	assert.Len(t, errs, 2)
}
