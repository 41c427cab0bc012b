package tenancy

import (
	"context"
	"testing"
)

func TestWithTenantAndTenantFromContext(t *testing.T) {
	tc := TenantContext{OrgID: "O1", SiteID: "S1", User: "alice"}

	ctx := WithTenant(context.Background(), tc)
	got, ok := TenantFromContext(ctx)
	if !ok {
		t.Fatal("expected TenantFromContext to return true")
	}
	if got != tc {
		t.Errorf("TenantFromContext() = %+v, want %+v", got, tc)
	}
}

func TestTenantFromContext_Missing(t *testing.T) {
	_, ok := TenantFromContext(context.Background())
	if ok {
		t.Fatal("expected TenantFromContext to return false for empty context")
	}
}

func TestOrgFromContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{
			name: "with tenant set",
			ctx:  WithTenant(context.Background(), TenantContext{OrgID: "O1"}),
			want: "O1",
		},
		{
			name: "without tenant set",
			ctx:  context.Background(),
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OrgFromContext(tt.ctx)
			if got != tt.want {
				t.Errorf("OrgFromContext() = %q, want %q", got, tt.want)
			}
		})
	}
}
