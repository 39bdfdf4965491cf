// Package database provides SQLite database connectivity for SensorBus Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations (additive-only)
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Files are named YYYYMMDD_HHMMSS_description.up.sql with a matching
// .down.sql. New columns must be NULLABLE or have DEFAULT values so a
// rollback of the binary keeps working against a newer schema.
package database
