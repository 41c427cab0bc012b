package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/solaius/shiftgate/pkg/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the governance audit trail",
}

var (
	auditAction     string
	auditTargetType string
	auditTargetID   string
	auditPageSize   int
	auditPageToken  string
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List governance events, newest first",
	RunE:  runAuditList,
}

var auditGetCmd = &cobra.Command{
	Use:   "get <event-id>",
	Short: "Show one governance event",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditGet,
}

var auditSnapshotCmd = &cobra.Command{
	Use:   "snapshot <snapshot-id>",
	Short: "Show the policy snapshot an event was evaluated under",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditSnapshot,
}

func init() {
	auditListCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action")
	auditListCmd.Flags().StringVar(&auditTargetType, "target-type", "", "Filter by target type")
	auditListCmd.Flags().StringVar(&auditTargetID, "target-id", "", "Filter by target id")
	auditListCmd.Flags().IntVar(&auditPageSize, "page-size", 20, "Events per page")
	auditListCmd.Flags().StringVar(&auditPageToken, "page-token", "", "Page token from a previous listing")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditGetCmd)
	auditCmd.AddCommand(auditSnapshotCmd)
}

type eventsResponse struct {
	Events        []audit.EventResponse `json:"events"`
	NextPageToken string                `json:"nextPageToken"`
	TotalSize     int                   `json:"totalSize"`
}

func runAuditList(cmd *cobra.Command, args []string) error {
	query := url.Values{"pageSize": {strconv.Itoa(auditPageSize)}}
	for k, v := range map[string]string{
		"action":      auditAction,
		"target_type": auditTargetType,
		"target_id":   auditTargetID,
		"pageToken":   auditPageToken,
	} {
		if v != "" {
			query.Set(k, v)
		}
	}

	var resp eventsResponse
	if _, err := newClient().getJSON("/api/v1/audit/events", query, &resp); err != nil {
		return err
	}

	if structured() {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Events))
	for _, e := range resp.Events {
		rows = append(rows, []string{
			e.CreatedAt,
			e.Action,
			e.TargetType + "/" + truncate(e.TargetID, 36),
			e.CreatedBy,
			truncate(e.PolicyFingerprint, 16),
			e.ID,
		})
	}
	printTable([]string{"Time", "Action", "Target", "Actor", "Fingerprint", "ID"}, rows)
	if resp.NextPageToken != "" {
		fmt.Fprintf(stdout, "\nMore events: --page-token %s\n", resp.NextPageToken)
	}
	return nil
}

func runAuditGet(cmd *cobra.Command, args []string) error {
	var e audit.EventResponse
	if _, err := newClient().getJSON("/api/v1/audit/events/"+url.PathEscape(args[0]), nil, &e); err != nil {
		return err
	}
	if structured() {
		return printOutput(e)
	}
	printTable([]string{"Field", "Value"}, [][]string{
		{"ID", e.ID},
		{"Action", e.Action},
		{"Target", e.TargetType + "/" + e.TargetID},
		{"Actor", e.CreatedBy},
		{"Site", e.SiteID},
		{"Request", e.RequestID},
		{"Policy Fingerprint", e.PolicyFingerprint},
		{"Snapshot", e.SnapshotID},
		{"Created", e.CreatedAt},
	})
	return nil
}

func runAuditSnapshot(cmd *cobra.Command, args []string) error {
	var snap audit.SnapshotResponse
	if _, err := newClient().getJSON("/api/v1/audit/snapshots/"+url.PathEscape(args[0]), nil, &snap); err != nil {
		return err
	}
	if outputFmt == "yaml" {
		return printYAML(snap)
	}
	// The policy body is only meaningful in full.
	return printJSON(snap)
}
