package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantFromContext_FailClosed(t *testing.T) {
	_, err := TenantFromContext(context.Background())
	assert.ErrorIs(t, err, ErrMissingTenant)

	ctx := ContextWithTenant(context.Background(), nil)
	_, err = TenantFromContext(ctx)
	assert.ErrorIs(t, err, ErrMissingTenant)

	ctx = ContextWithTenant(context.Background(), &TenantInfo{})
	_, err = TenantFromContext(ctx)
	assert.ErrorIs(t, err, ErrInvalidTenant)
}

func TestTenantFromContext_RoundTrip(t *testing.T) {
	ctx := ContextWithTenant(context.Background(), &TenantInfo{TenantID: "org-123"})

	tenant, err := TenantFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "org-123", tenant.TenantID)
	assert.True(t, HasTenant(ctx))
	assert.False(t, HasTenant(context.Background()))
}

func TestCollectionKey(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		tenantID   string
		want       string
		wantErr    error
	}{
		{
			name:       "simple",
			entityType: "decisions",
			tenantID:   "acme",
			want:       "decisions_acme",
		},
		{
			name:       "uuid tenant sanitized",
			entityType: "decisions",
			tenantID:   "550e8400-E29B-41d4-a716-446655440000",
			want:       "decisions_550e8400_e29b_41d4_a716_446655440000",
		},
		{
			name:       "mixed case entity",
			entityType: "Transaction",
			tenantID:   "org1",
			want:       "transaction_org1",
		},
		{
			name:       "empty entity type",
			entityType: "",
			tenantID:   "org1",
			wantErr:    ErrInvalidCollectionName,
		},
		{
			name:       "empty tenant",
			entityType: "decisions",
			tenantID:   "",
			wantErr:    ErrInvalidTenant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CollectionKey(tt.entityType, tt.tenantID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectionKey_DistinctTenantsDistinctKeys(t *testing.T) {
	a, err := CollectionKey("decisions", "tenant-a")
	require.NoError(t, err)
	b, err := CollectionKey("decisions", "tenant-b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAuthorizeTenant(t *testing.T) {
	tests := []struct {
		name       string
		ctx        context.Context
		collection string
		wantErr    error
	}{
		{
			name:       "own collection",
			ctx:        tenantCtx("acme"),
			collection: "decisions_acme",
		},
		{
			name:       "sanitized tenant id",
			ctx:        tenantCtx("Tenant-A"),
			collection: "decisions_tenant_a",
		},
		{
			name:       "no tenant in context",
			ctx:        context.Background(),
			collection: "decisions_acme",
			wantErr:    ErrMissingTenant,
		},
		{
			name:       "foreign collection",
			ctx:        tenantCtx("other"),
			collection: "decisions_acme",
			wantErr:    ErrInvalidTenant,
		},
		{
			name:       "prefix tenant does not match longer suffix",
			ctx:        tenantCtx("t1"),
			collection: "decisions_t10",
			wantErr:    ErrInvalidTenant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorizeTenant(tt.ctx, tt.collection)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
