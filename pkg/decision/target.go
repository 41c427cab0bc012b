package decision

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Target types understood by the translators.
const (
	// TargetTypeLineShift is the canonical identity: one line during one shift.
	TargetTypeLineShift = "line_shift"
	// TargetTypeLegacySlot is the older per-slot identity,
	// "<date>|<shift code>|<line>|<slot>".
	TargetTypeLegacySlot = "shift_slot"
)

// lineShiftNamespace seeds line-shift target ids.
var lineShiftNamespace = uuid.MustParse("6b1c9e5a-2f4d-5a8e-b7c3-9d0e1f2a3b4c")

// NaturalKey identifies a decision by what it is about.
type NaturalKey struct {
	DecisionType string `json:"decision_type"`
	TargetType   string `json:"target_type"`
	TargetID     string `json:"target_id"`
}

// Validate checks that every key part is present.
func (k NaturalKey) Validate() error {
	var missing []string
	if strings.TrimSpace(k.DecisionType) == "" {
		missing = append(missing, "decision_type")
	}
	if strings.TrimSpace(k.TargetType) == "" {
		missing = append(missing, "target_type")
	}
	if strings.TrimSpace(k.TargetID) == "" {
		missing = append(missing, "target_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("decision key is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// LineShiftTargetID returns the canonical target id of a line during a
// shift. Shift code and line are compared case-insensitively and trimmed.
func LineShiftTargetID(date, shiftCode, line string) (string, error) {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return "", fmt.Errorf("invalid shift date %q", date)
	}
	code := strings.ToLower(strings.TrimSpace(shiftCode))
	ln := strings.ToLower(strings.TrimSpace(line))
	if code == "" || ln == "" {
		return "", errors.New("shift code and line are required")
	}
	return uuid.NewSHA1(lineShiftNamespace, []byte(date+"|"+code+"|"+ln)).String(), nil
}

// LegacySlot is a position on a line during a shift, as the per-slot
// identity scheme addressed it.
type LegacySlot struct {
	Date      string
	ShiftCode string
	Line      string
	Slot      int
}

// String formats the slot as its legacy target id.
func (s LegacySlot) String() string {
	return strings.Join([]string{s.Date, s.ShiftCode, s.Line, strconv.Itoa(s.Slot)}, "|")
}

// ParseLegacySlot parses a legacy per-slot target id.
func ParseLegacySlot(id string) (LegacySlot, error) {
	parts := strings.Split(id, "|")
	if len(parts) != 4 {
		return LegacySlot{}, fmt.Errorf("legacy slot %q: want date|shift|line|slot", id)
	}
	slot, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil || slot < 0 {
		return LegacySlot{}, fmt.Errorf("legacy slot %q: bad slot number", id)
	}
	return LegacySlot{
		Date:      strings.TrimSpace(parts[0]),
		ShiftCode: strings.TrimSpace(parts[1]),
		Line:      strings.TrimSpace(parts[2]),
		Slot:      slot,
	}, nil
}

// Canonical translates a legacy slot to the line-shift key it belongs to.
// Every slot of a line during a shift maps to the same key.
func (s LegacySlot) Canonical(decisionType string) (NaturalKey, error) {
	id, err := LineShiftTargetID(s.Date, s.ShiftCode, s.Line)
	if err != nil {
		return NaturalKey{}, err
	}
	return NaturalKey{DecisionType: decisionType, TargetType: TargetTypeLineShift, TargetID: id}, nil
}

// CanonicalKey normalizes a key under any supported identity scheme to the
// key that is stored. Unknown target types pass through unchanged.
func CanonicalKey(decisionType, targetType, targetID string) (NaturalKey, error) {
	switch targetType {
	case TargetTypeLegacySlot:
		slot, err := ParseLegacySlot(targetID)
		if err != nil {
			return NaturalKey{}, err
		}
		return slot.Canonical(decisionType)
	case TargetTypeLineShift:
		if _, err := uuid.Parse(targetID); err != nil {
			return NaturalKey{}, fmt.Errorf("line_shift target id %q is not canonical", targetID)
		}
	}
	key := NaturalKey{DecisionType: decisionType, TargetType: targetType, TargetID: targetID}
	return key, key.Validate()
}
