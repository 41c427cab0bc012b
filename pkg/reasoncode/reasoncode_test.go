package reasoncode

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		in          []string
		wantCodes   []string
		wantUnknown []string
	}{
		{
			name:      "nil input",
			in:        nil,
			wantCodes: []string{},
		},
		{
			name:      "sorted and deduplicated",
			in:        []string{StationUnstaffed, NoAssignments, StationUnstaffed, ComplianceExpired},
			wantCodes: []string{ComplianceExpired, NoAssignments, StationUnstaffed},
		},
		{
			name:        "unknown codes are quarantined",
			in:          []string{"RULE_ENGINE_V9_SOMETHING", PolicyMissing, "legacy_code", "RULE_ENGINE_V9_SOMETHING"},
			wantCodes:   []string{PolicyMissing},
			wantUnknown: []string{"RULE_ENGINE_V9_SOMETHING", "legacy_code"},
		},
		{
			name:      "blank entries are dropped",
			in:        []string{"", "  ", LegalStop},
			wantCodes: []string{LegalStop},
		},
		{
			name:        "case matters",
			in:          []string{"no_site"},
			wantCodes:   []string{},
			wantUnknown: []string{"no_site"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.wantCodes, got.ReasonCodes)
			assert.Equal(t, tt.wantUnknown, got.Unknown)
		})
	}
}

func TestTaxonomySorted(t *testing.T) {
	codes := Taxonomy()
	assert.Len(t, codes, 11)
	assert.IsNonDecreasing(t, codes)
	for _, c := range codes {
		assert.True(t, Known(c), c)
	}
	assert.False(t, Known("SOMETHING_ELSE"))
}

func rawCodes() gopter.Gen {
	known := make([]interface{}, 0, 11)
	for _, c := range Taxonomy() {
		known = append(known, c)
	}
	return gen.SliceOf(
		gen.OneGenOf(gen.OneConstOf(known...), gen.AlphaString()),
		reflect.TypeOf(""),
	)
}

func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize is idempotent", prop.ForAll(
		func(codes []string) bool {
			once := Normalize(codes).ReasonCodes
			twice := Normalize(once)
			return reflect.DeepEqual(once, twice.ReasonCodes) && len(twice.Unknown) == 0
		},
		rawCodes(),
	))

	properties.Property("normalize ignores input order", prop.ForAll(
		func(codes []string, seed int64) bool {
			shuffled := append([]string(nil), codes...)
			r := rand.New(rand.NewSource(seed))
			r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			a, b := Normalize(codes), Normalize(shuffled)
			return reflect.DeepEqual(a, b)
		},
		rawCodes(),
		gen.Int64(),
	))

	properties.Property("only known codes survive", prop.ForAll(
		func(codes []string) bool {
			for _, c := range Normalize(codes).ReasonCodes {
				if !Known(c) {
					return false
				}
			}
			return true
		},
		rawCodes(),
	))

	properties.TestingRun(t)
}
