// Package database provides SQLite connectivity for the output policy store.
//
// It opens the database with WAL and a busy timeout, limits the pool to one
// connection, applies embedded schema migrations and offers InTx for
// multi-table atomic writes.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
