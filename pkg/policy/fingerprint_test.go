package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := []Ref{
		{UnitID: "U2", IndustryType: "pharma", Version: "7"},
		{UnitID: "U1", IndustryType: "food", Version: "3"},
	}
	b := []Ref{a[1], a[0]}

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.True(t, strings.HasPrefix(fa, "sha256:"))
	assert.Len(t, fa, len("sha256:")+64)
	assert.Equal(t, "U2", a[0].UnitID, "input is not reordered")
}

func TestFingerprint_VersionChangeChangesDigest(t *testing.T) {
	before, err := Fingerprint([]Ref{{UnitID: "U1", IndustryType: "food", Version: "3"}})
	require.NoError(t, err)
	after, err := Fingerprint([]Ref{{UnitID: "U1", IndustryType: "food", Version: "4"}})
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestFingerprint_Empty(t *testing.T) {
	fp, err := Fingerprint(nil)
	require.NoError(t, err)
	assert.Empty(t, fp)
}

func TestCanonicalJSON_SortsKeysAndRefs(t *testing.T) {
	out, err := CanonicalJSON([]Ref{
		{UnitID: "U2", IndustryType: "b", Version: "1"},
		{UnitID: "U1", IndustryType: "a", Version: "2"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`[{"industry_type":"a","unit_id":"U1","version":"2"},{"industry_type":"b","unit_id":"U2","version":"1"}]`,
		string(out))
}
