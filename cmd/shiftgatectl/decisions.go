package main

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solaius/shiftgate/pkg/decision"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Query and resolve execution decisions",
}

var (
	activeTargetType string
	activeTargetIDs  []string

	resolveDate       string
	resolveShiftCode  string
	resolveLine       string
	resolveLegacySlot string
	resolveTargetType string
	resolveTargetID   string
	resolveReason     string
	resolveToken      string
)

var decisionsActiveCmd = &cobra.Command{
	Use:   "active <decision-type>",
	Short: "Show which targets carry an active decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionsActive,
}

var decisionsResolveCmd = &cobra.Command{
	Use:   "resolve <decision-type>",
	Short: "Resolve a decision through the governance gate",
	Long: `Resolve a decision through the governance gate.

The target is one of:
  --date, --shift-code and --line   a line during a shift
  --legacy-slot                     a "<date>|<shift code>|<line>|<slot>" id
  --target-type and --target-id     any other target`,
	Args: cobra.ExactArgs(1),
	RunE: runDecisionsResolve,
}

func init() {
	decisionsActiveCmd.Flags().StringVar(&activeTargetType, "target-type", decision.TargetTypeLineShift, "Target type")
	decisionsActiveCmd.Flags().StringSliceVar(&activeTargetIDs, "target-id", nil, "Target id (repeatable)")

	f := decisionsResolveCmd.Flags()
	f.StringVar(&resolveDate, "date", "", "Shift date (YYYY-MM-DD)")
	f.StringVar(&resolveShiftCode, "shift-code", "", "Shift code")
	f.StringVar(&resolveLine, "line", "", "Line")
	f.StringVar(&resolveLegacySlot, "legacy-slot", "", "Legacy slot id")
	f.StringVar(&resolveTargetType, "target-type", "", "Target type")
	f.StringVar(&resolveTargetID, "target-id", "", "Target id")
	f.StringVar(&resolveReason, "reason", "", "Reason for the decision")
	f.StringVar(&resolveToken, "token", "", "Execution token (default: from SHIFTGATE_TOKEN env)")

	decisionsCmd.AddCommand(decisionsActiveCmd)
	decisionsCmd.AddCommand(decisionsResolveCmd)
}

type activeResponse struct {
	DecisionType string   `json:"decision_type"`
	TargetType   string   `json:"target_type"`
	Active       []string `json:"active"`
}

func runDecisionsActive(cmd *cobra.Command, args []string) error {
	query := url.Values{"target_type": {activeTargetType}}
	if len(activeTargetIDs) > 0 {
		query.Set("target_id", strings.Join(activeTargetIDs, ","))
	}

	var resp activeResponse
	if _, err := newClient().getJSON("/api/v1/decisions/"+url.PathEscape(args[0])+"/active", query, &resp); err != nil {
		return err
	}

	if structured() {
		return printOutput(resp)
	}

	active := make(map[string]bool, len(resp.Active))
	for _, id := range resp.Active {
		active[id] = true
	}
	rows := make([][]string, 0, len(activeTargetIDs))
	for _, id := range activeTargetIDs {
		rows = append(rows, []string{id, yesNo(active[id])})
	}
	printTable([]string{"Target", "Active"}, rows)
	return nil
}

type lineShiftTarget struct {
	Date      string `json:"date"`
	ShiftCode string `json:"shift_code"`
	Line      string `json:"line"`
}

type resolveTarget struct {
	LineShift  *lineShiftTarget `json:"line_shift,omitempty"`
	LegacySlot string           `json:"legacy_slot,omitempty"`
	Type       string           `json:"type,omitempty"`
	ID         string           `json:"id,omitempty"`
}

type resolveBody struct {
	Target    resolveTarget `json:"target"`
	Reason    string        `json:"reason"`
	Date      string        `json:"date,omitempty"`
	ShiftCode string        `json:"shift_code,omitempty"`
}

// buildResolveBody assembles the request from flags, requiring exactly one
// target form.
func buildResolveBody() (resolveBody, error) {
	body := resolveBody{Reason: resolveReason}
	forms := 0
	if resolveLine != "" {
		forms++
		body.Target.LineShift = &lineShiftTarget{Date: resolveDate, ShiftCode: resolveShiftCode, Line: resolveLine}
	}
	if resolveLegacySlot != "" {
		forms++
		body.Target.LegacySlot = resolveLegacySlot
	}
	if resolveTargetType != "" || resolveTargetID != "" {
		forms++
		body.Target.Type = resolveTargetType
		body.Target.ID = resolveTargetID
		body.Date = resolveDate
		body.ShiftCode = resolveShiftCode
	}
	if forms != 1 {
		return resolveBody{}, errors.New("give exactly one of --line, --legacy-slot or --target-type/--target-id")
	}
	return body, nil
}

func runDecisionsResolve(cmd *cobra.Command, args []string) error {
	body, err := buildResolveBody()
	if err != nil {
		return err
	}

	client := newClient()
	client.token = flagOrEnv(resolveToken, "SHIFTGATE_TOKEN")

	var rec decision.Record
	header, err := client.postJSON("/api/v1/decisions/"+url.PathEscape(args[0])+"/resolve", body, &rec)
	if err != nil {
		return err
	}

	if structured() {
		return printOutput(rec)
	}

	printTable([]string{"Field", "Value"}, [][]string{
		{"Decision", rec.ID},
		{"Type", rec.DecisionType},
		{"Target", rec.TargetType + "/" + rec.TargetID},
		{"Status", string(rec.Status)},
		{"Event", header.Get("X-Governance-Event-Id")},
		{"Policy Fingerprint", truncate(header.Get("X-Policy-Fingerprint"), 24)},
	})
	return nil
}
