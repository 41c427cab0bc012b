package readiness

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ShiftRef addresses a shift either directly by id or by calendar date and
// shift code. Exactly one form is set.
type ShiftRef struct {
	ShiftID   string
	Date      string
	ShiftCode string
}

// ByID returns a reference to a shift id.
func ByID(shiftID string) ShiftRef { return ShiftRef{ShiftID: shiftID} }

// ByDate returns a reference to the shift on date with the given code.
func ByDate(date, shiftCode string) ShiftRef { return ShiftRef{Date: date, ShiftCode: shiftCode} }

func (r ShiftRef) String() string {
	if r.ShiftID != "" {
		return "#" + r.ShiftID
	}
	return r.Date + "@" + r.ShiftCode
}

// IsZero reports whether the reference addresses nothing.
func (r ShiftRef) IsZero() bool {
	return r.ShiftID == "" && (r.Date == "" || r.ShiftCode == "")
}

var shiftRefLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Date", Pattern: `\d{4}-\d{2}-\d{2}`},
	{Name: "Ident", Pattern: `[A-Za-z0-9_][A-Za-z0-9_.-]*`},
	{Name: "Punct", Pattern: `[#@/]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type shiftRefGrammar struct {
	ByID   *idRef   `  @@`
	ByDate *dateRef `| @@`
}

type idRef struct {
	ID string `"#" @Ident`
}

type dateRef struct {
	Date string `@Date ( "@" | "/" )`
	Code string `@Ident`
}

var shiftRefParser = participle.MustBuild[shiftRefGrammar](
	participle.Lexer(shiftRefLexer),
	participle.Elide("Whitespace"),
)

// ParseShiftRef parses "#<shift id>" or "<YYYY-MM-DD>@<shift code>"
// ("/" is accepted in place of "@").
func ParseShiftRef(s string) (ShiftRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ShiftRef{}, errors.New("empty shift reference")
	}
	g, err := shiftRefParser.ParseString("", s)
	if err != nil {
		return ShiftRef{}, fmt.Errorf("invalid shift reference %q: %w", s, err)
	}
	if g.ByID != nil {
		return ByID(g.ByID.ID), nil
	}
	if _, err := time.Parse(time.DateOnly, g.ByDate.Date); err != nil {
		return ShiftRef{}, fmt.Errorf("invalid shift date %q: %w", g.ByDate.Date, err)
	}
	return ByDate(g.ByDate.Date, g.ByDate.Code), nil
}
