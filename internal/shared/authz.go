package shared

import "fmt"

// Caller roles recognised by the core. Role assignment itself is owned by the
// external user administration.
const (
	RoleManufacturer = "manufacturer"
	RoleDealerStaff  = "dealer_staff"
)

// Authorize is the single dealer-scope predicate applied before any mutation.
// Cross-dealer access reports ErrForbidden, never ErrNotFound, so the policy
// cannot drift between operations.
func Authorize(id *Identity, ownerDealerID int64) error {
	if id == nil {
		return fmt.Errorf("caller identity missing: %w", ErrForbidden)
	}
	if id.DealerID != ownerDealerID {
		return fmt.Errorf("entity belongs to another dealer: %w", ErrForbidden)
	}
	return nil
}

// RequireRole rejects callers whose role lacks the capability.
func RequireRole(id *Identity, role string) error {
	if id == nil {
		return fmt.Errorf("caller identity missing: %w", ErrForbidden)
	}
	if id.Role != role {
		return fmt.Errorf("role %q required: %w", role, ErrForbidden)
	}
	return nil
}
