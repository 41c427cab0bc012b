package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solaius/shiftgate/pkg/token"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with execution tokens",
}

var (
	tokenActions []string
	tokenTTL     time.Duration
	tokenSubject string
	tokenSecret  string
	tokenIssuer  string
)

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign an execution token locally",
	Long: `Sign an execution token locally with the server's shared secret.

The secret is read from --secret or SHIFTGATE_TOKEN_SECRET. The token is
bound to the organization given by --org, if any.`,
	RunE: runTokenIssue,
}

func init() {
	f := tokenIssueCmd.Flags()
	f.StringSliceVar(&tokenActions, "action", nil, "Allowed action (repeatable)")
	f.DurationVar(&tokenTTL, "ttl", 15*time.Minute, "Token lifetime")
	f.StringVar(&tokenSubject, "subject", "", "Token subject (default: --user)")
	f.StringVar(&tokenSecret, "secret", "", "Signing secret (default: from SHIFTGATE_TOKEN_SECRET env)")
	f.StringVar(&tokenIssuer, "issuer", "", "Issuer claim (default: from SHIFTGATE_TOKEN_ISSUER env)")

	tokenCmd.AddCommand(tokenIssueCmd)
}

type issuedToken struct {
	Token  string        `json:"token"`
	Claims *token.Claims `json:"claims"`
}

func issueToken() (issuedToken, error) {
	secret := flagOrEnv(tokenSecret, "SHIFTGATE_TOKEN_SECRET")
	if secret == "" {
		return issuedToken{}, errors.New("a signing secret is required (--secret or SHIFTGATE_TOKEN_SECRET)")
	}
	subject := tokenSubject
	if subject == "" {
		subject = flagOrEnv(userID, "SHIFTGATE_USER")
	}

	issuer := token.NewIssuer([]byte(secret), token.WithIssuer(flagOrEnv(tokenIssuer, "SHIFTGATE_TOKEN_ISSUER")))
	signed, claims, err := issuer.Issue(subject, flagOrEnv(orgID, "SHIFTGATE_ORG"), tokenActions, tokenTTL)
	if err != nil {
		return issuedToken{}, err
	}
	return issuedToken{Token: signed, Claims: claims}, nil
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	issued, err := issueToken()
	if err != nil {
		return err
	}
	if structured() {
		return printOutput(issued)
	}
	_, err = fmt.Fprintln(stdout, issued.Token)
	return err
}
