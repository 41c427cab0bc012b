package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/solaius/shiftgate/pkg/readiness"
)

var readinessShift string

var readinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Compute the readiness of a shift",
	Long: `Compute the readiness of a shift.

The shift is given as "#<shift id>" or "<date>@<shift code>",
for example --shift 2025-06-01@Day.`,
	RunE: runReadiness,
}

func init() {
	readinessCmd.Flags().StringVar(&readinessShift, "shift", "", "Shift reference (#<id> or <date>@<code>)")
	_ = readinessCmd.MarkFlagRequired("shift")
}

func runReadiness(cmd *cobra.Command, args []string) error {
	if _, err := readiness.ParseShiftRef(readinessShift); err != nil {
		return err
	}

	var res readiness.Result
	if _, err := newClient().getJSON("/api/v1/readiness", url.Values{"shift": {readinessShift}}, &res); err != nil {
		return err
	}

	if structured() {
		return printOutput(res)
	}

	rows := [][]string{
		{"Shift", res.ShiftID},
		{"Status", string(res.Status)},
		{"Score", strconv.FormatFloat(res.Score, 'f', 2, 64)},
		{"Legitimacy", string(res.LegitimacyStatus)},
		{"Calculation", res.Calculation},
		{"Blocking Stations", joinOrDash(res.BlockingStations)},
		{"Reason Codes", joinOrDash(res.ReasonCodes)},
		{"Policy Fingerprint", truncate(res.PolicyFingerprint, 24)},
		{"Snapshot", res.SnapshotID},
	}
	if res.PolicyCompliance != nil {
		t := res.PolicyCompliance.Totals
		rows = append(rows, []string{"Compliance",
			fmt.Sprintf("%d stations, %d legal stops, %d blocking, %d warnings", t.Stations, t.LegalStops, t.Blocking, t.Warnings)})
	}
	printTable([]string{"Field", "Value"}, rows)
	return nil
}
