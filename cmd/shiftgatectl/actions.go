package main

import (
	"github.com/spf13/cobra"

	"github.com/solaius/shiftgate/pkg/gate"
)

type actionsResponse struct {
	Actions []gate.ActionPolicy `json:"actions"`
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the actions declared in the server's action registry",
	RunE:  runActions,
}

func runActions(cmd *cobra.Command, args []string) error {
	var resp actionsResponse
	if _, err := newClient().getJSON("/api/v1/actions", nil, &resp); err != nil {
		return err
	}

	if structured() {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Actions))
	for _, a := range resp.Actions {
		rows = append(rows, []string{
			a.Action,
			yesNo(a.Governed),
			yesNo(a.ShiftContextExempt),
			yesNo(a.RequiresToken),
			yesNo(a.RequiresPolicy),
			yesNo(a.BlockOnLegalStop),
		})
	}
	printTable([]string{"Action", "Governed", "Exempt", "Token", "Policy", "Legal Stop Blocks"}, rows)
	return nil
}
