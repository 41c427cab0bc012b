package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	orgID     string
	siteID    string
	userID    string
)

var rootCmd = &cobra.Command{
	Use:   "shiftgatectl",
	Short: "CLI for the shiftgate governance server",
	Long: `shiftgatectl queries shift readiness, active decisions and the governance
audit trail of a shiftgate server, and issues execution tokens locally.

Requests carry the organization, site and user given by --org, --site and
--user, falling back to SHIFTGATE_ORG, SHIFTGATE_SITE and SHIFTGATE_USER.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "shiftgate server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", "", "Organization id (default: from SHIFTGATE_ORG env)")
	rootCmd.PersistentFlags().StringVar(&siteID, "site", "", "Site id (default: from SHIFTGATE_SITE env)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "Acting user id (default: from SHIFTGATE_USER env)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(readinessCmd)
	rootCmd.AddCommand(decisionsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(tokenCmd)
}

// flagOrEnv returns the flag value if set, else the named environment variable.
func flagOrEnv(flagValue, env string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(env)
}
