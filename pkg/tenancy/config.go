// Package tenancy resolves the organization, site and acting user of a
// request and carries them through its context.
package tenancy

// TenancyMode controls how tenant context is resolved.
type TenancyMode string

const (
	// ModeSingle serves one fixed organization; org headers are ignored.
	ModeSingle TenancyMode = "single"
	// ModeHeader requires the organization on every request.
	ModeHeader TenancyMode = "header"
)

// DefaultOrgID is the organization used in single mode when none is configured.
const DefaultOrgID = "default"
