package tenancy

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// maxIDLen bounds org, site and user identifiers.
const maxIDLen = 128

// idRe accepts opaque identifiers: uuids, slugs and email-like user names.
var idRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:@-]*$`)

// Request headers carrying tenant context.
const (
	OrgHeader  = "X-Org-ID"
	SiteHeader = "X-Site-ID"
	UserHeader = "X-User-ID"
)

// AnonymousUser is recorded as the actor when no user header is sent.
const AnonymousUser = "anonymous"

// TenantResolver resolves the tenant context from an HTTP request.
type TenantResolver interface {
	Resolve(r *http.Request) (TenantContext, error)
}

// SingleTenantResolver always resolves to one organization. Site and user
// are still read from their headers.
type SingleTenantResolver struct {
	OrgID string
}

// Resolve returns the fixed organization with the request's site and user.
func (s SingleTenantResolver) Resolve(r *http.Request) (TenantContext, error) {
	org := s.OrgID
	if org == "" {
		org = DefaultOrgID
	}
	site, user, err := siteAndUser(r)
	if err != nil {
		return TenantContext{}, err
	}
	return TenantContext{OrgID: org, SiteID: site, User: user}, nil
}

// HeaderTenantResolver reads the organization from X-Org-ID, which is
// required.
type HeaderTenantResolver struct{}

// Resolve extracts org, site and user from the request headers.
func (HeaderTenantResolver) Resolve(r *http.Request) (TenantContext, error) {
	org := strings.TrimSpace(r.Header.Get(OrgHeader))
	if org == "" {
		return TenantContext{}, fmt.Errorf("organization is required (use the %s header)", OrgHeader)
	}
	if err := validateID("organization", org); err != nil {
		return TenantContext{}, err
	}
	site, user, err := siteAndUser(r)
	if err != nil {
		return TenantContext{}, err
	}
	return TenantContext{OrgID: org, SiteID: site, User: user}, nil
}

func siteAndUser(r *http.Request) (string, string, error) {
	site := strings.TrimSpace(r.Header.Get(SiteHeader))
	if site != "" {
		if err := validateID("site", site); err != nil {
			return "", "", err
		}
	}
	user := strings.TrimSpace(r.Header.Get(UserHeader))
	if user == "" {
		user = AnonymousUser
	} else if err := validateID("user", user); err != nil {
		return "", "", err
	}
	return site, user, nil
}

func validateID(kind, v string) error {
	if len(v) > maxIDLen {
		return fmt.Errorf("%s %q exceeds maximum length of %d characters", kind, v, maxIDLen)
	}
	if !idRe.MatchString(v) {
		return fmt.Errorf("%s %q is invalid: must start with a letter or digit and contain only letters, digits, '_', '.', ':', '@' or '-'", kind, v)
	}
	return nil
}
