package decision

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineShiftTargetID(t *testing.T) {
	a, err := LineShiftTargetID("2025-06-01", "Day", "L1")
	require.NoError(t, err)
	b, err := LineShiftTargetID(" 2025-06-01", " DAY ", "l1")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := LineShiftTargetID("2025-06-01", "Night", "L1")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = LineShiftTargetID("06/01/2025", "Day", "L1")
	assert.Error(t, err)
	_, err = LineShiftTargetID("2025-06-01", "", "L1")
	assert.Error(t, err)
}

func TestParseLegacySlot(t *testing.T) {
	slot, err := ParseLegacySlot("2025-06-01|Day|L1|3")
	require.NoError(t, err)
	assert.Equal(t, LegacySlot{Date: "2025-06-01", ShiftCode: "Day", Line: "L1", Slot: 3}, slot)
	assert.Equal(t, "2025-06-01|Day|L1|3", slot.String())

	for _, bad := range []string{"", "2025-06-01|Day|L1", "2025-06-01|Day|L1|x", "2025-06-01|Day|L1|-1", "a|b|c|d|e"} {
		_, err := ParseLegacySlot(bad)
		assert.Error(t, err, bad)
	}
}

func TestCanonicalKey(t *testing.T) {
	_, err := CanonicalKey("resolve_no_go", TargetTypeLineShift, "not-a-uuid")
	assert.Error(t, err)

	_, err = CanonicalKey("resolve_no_go", TargetTypeLegacySlot, "garbage")
	assert.Error(t, err)

	key, err := CanonicalKey("acknowledge_warning", "station", "st-1")
	require.NoError(t, err)
	assert.Equal(t, NaturalKey{DecisionType: "acknowledge_warning", TargetType: "station", TargetID: "st-1"}, key)

	_, err = CanonicalKey("", "station", "st-1")
	assert.Error(t, err)
}

// Every slot of a line during a shift, addressed either way, lands on the
// same stored key.
func TestCanonicalKey_SchemesConverge(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	dates := gen.OneConstOf("2025-01-31", "2025-06-01", "2024-02-29", "2026-12-31")
	codes := gen.Identifier()
	lines := gen.Identifier()
	slots := gen.IntRange(0, 64)

	properties.Property("legacy slot and line-shift ids agree", prop.ForAll(
		func(date, code, line string, slot int) bool {
			legacy := LegacySlot{Date: date, ShiftCode: code, Line: line, Slot: slot}
			fromLegacy, err := CanonicalKey("resolve_no_go", TargetTypeLegacySlot, legacy.String())
			if err != nil {
				return false
			}
			id, err := LineShiftTargetID(date, code, line)
			if err != nil {
				return false
			}
			fromCanonical, err := CanonicalKey("resolve_no_go", TargetTypeLineShift, id)
			if err != nil {
				return false
			}
			again, _ := CanonicalKey("resolve_no_go", TargetTypeLegacySlot, fmt.Sprintf("%s|%s|%s|%d", date, code, line, slot+1))
			return fromLegacy == fromCanonical && again == fromLegacy
		},
		dates, codes, lines, slots,
	))

	properties.TestingRun(t)
}
