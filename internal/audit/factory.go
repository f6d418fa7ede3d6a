package audit

import (
	"fmt"

	"gatekeeper/internal/models"
)

// NewStore instantiates an audit store backend based on configuration.
// Supported backends:
//   - memory: bounded ring buffer (default; lost on restart)
//   - sqlite: local SQLite database
//   - postgres: PostgreSQL, for shared audit trails across instances
func NewStore(cfg models.AuditConfig) (Store, error) {
	switch cfg.Type {
	case models.AuditTypeMemory:
		return NewMemoryStore(cfg.MaxEvents), nil
	case models.AuditTypeSQLite:
		return NewSQLiteStore(cfg.DSN)
	case models.AuditTypePostgres:
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported audit store type: %s", cfg.Type)
	}
}
