package storage

import (
	"context"
	"fmt"
)

// LogAudit records a cross-tenant access attempt or other security-
// relevant event as one row of the audit_logs table, scoped by
// tenant_id.
func (s *Store) LogAudit(ctx context.Context, tenantID string, action AuditAction, resourceID, details string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (tenant_id, action, resource_id, details)
		VALUES ($1, $2, $3, $4)
	`, tenantID, action, nullIfEmpty(resourceID), details)
	if err != nil {
		return fmt.Errorf("storage: log audit: %w", err)
	}
	return nil
}
