package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Tenant isolation error types - fail closed security model.
var (
	// ErrMissingTenant is returned when tenant info is missing from context.
	// This triggers "fail closed" behavior - no empty results, just errors.
	ErrMissingTenant = errors.New("tenant info missing from context")

	// ErrInvalidTenant is returned when a tenant identifier is invalid.
	ErrInvalidTenant = errors.New("invalid tenant identifier")
)

// tenantContextKey is the context key for TenantInfo.
type tenantContextKey struct{}

// TenantInfo holds the tenant identity every memory operation is scoped to.
//
// Isolation is collection-level: the tenant ID is baked into every
// collection name (see CollectionKey), so a missing or wrong tenant cannot
// silently read another tenant's vectors.
type TenantInfo struct {
	// TenantID is the organization identifier (required).
	TenantID string
}

// Validate checks that required fields are present and valid.
func (t *TenantInfo) Validate() error {
	if t.TenantID == "" {
		return fmt.Errorf("%w: tenant ID is required", ErrInvalidTenant)
	}
	return nil
}

// ContextWithTenant adds TenantInfo to a context.
func ContextWithTenant(ctx context.Context, tenant *TenantInfo) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantFromContext extracts TenantInfo from a context.
// Returns ErrMissingTenant if not present - fail closed.
func TenantFromContext(ctx context.Context) (*TenantInfo, error) {
	val := ctx.Value(tenantContextKey{})
	if val == nil {
		return nil, ErrMissingTenant
	}
	tenant, ok := val.(*TenantInfo)
	if !ok || tenant == nil {
		return nil, ErrMissingTenant
	}
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	return tenant, nil
}

// HasTenant checks if TenantInfo is present in context without error.
func HasTenant(ctx context.Context) bool {
	_, err := TenantFromContext(ctx)
	return err == nil
}

// authorizeTenant gates data operations: the context must carry a valid
// TenantInfo and the collection must be that tenant's own, i.e. its name
// ends in the tenant's sanitized ID. Fails closed on a missing tenant.
func authorizeTenant(ctx context.Context, collection string) error {
	tenant, err := TenantFromContext(ctx)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(collection, "_"+sanitizeSegment(tenant.TenantID)) {
		return fmt.Errorf("%w: collection %q does not belong to tenant %q",
			ErrInvalidTenant, collection, tenant.TenantID)
	}
	return nil
}

// CollectionKey derives the tenant-scoped collection name for an entity
// type: "{entityType}_{tenantID}", both segments sanitized to the collection
// name alphabet. Two tenants can never share a key.
func CollectionKey(entityType, tenantID string) (string, error) {
	if entityType == "" {
		return "", fmt.Errorf("%w: entity type cannot be empty", ErrInvalidCollectionName)
	}
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenant ID is required", ErrInvalidTenant)
	}

	key := sanitizeSegment(entityType) + "_" + sanitizeSegment(tenantID)
	if err := ValidateCollectionName(key); err != nil {
		return "", err
	}
	return key, nil
}

// sanitizeSegment lowercases and maps disallowed runes to underscores so
// external identifiers (UUIDs with dashes, mixed case) form valid names.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
