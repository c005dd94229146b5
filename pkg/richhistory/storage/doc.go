// Package storage provides backing stores for rich history entries.
//
// # Storage Backends
//
// The storage package defines the Backend interface and provides three
// implementations:
//
//   - Memory: in-process map with an optional byte quota
//   - SQLite: embedded database for single-node deployments
//   - DynamoDB: remote table for shared deployments
//
// Backends store entries verbatim. Duplicate detection, capacity limits and
// ID assignment live in the service package; a backend only enforces its
// physical quota and reports ErrQuotaExceeded when an insert does not fit.
//
// # Atomic Commit
//
// Commit inserts one entry and removes the evicted ones as a single step:
//
//   - Memory: applied under the backend lock after the quota check
//   - SQLite: one transaction
//   - DynamoDB: one TransactWriteItems call
//
// A failed commit leaves the store unchanged.
//
// # SQLite Backend
//
// The SQLite backend provides durable storage with:
//
//   - Two drivers: "sqlite" (modernc.org/sqlite, pure Go) and "sqlite3" (mattn/go-sqlite3, cgo)
//   - WAL mode for concurrent reads/writes
//   - Busy timeout for handling locks
//   - max_page_count as a hard size cap (SQLITE_FULL maps to ErrQuotaExceeded)
//   - Native search through the Searcher interface
//
// # Basic Usage
//
//	backend, err := storage.NewSQLiteBackend(&storage.SQLiteConfig{
//	    Path:        "data/richhistory.db",
//	    Driver:      storage.DriverModernc,
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # DynamoDB Backend
//
// Entries live under partition key "entry#<id>" and the settings document
// under "settings" in a table whose partition key is the string attribute
// "pk". Items larger than MaxItemBytes are rejected with ErrQuotaExceeded.
//
//	client, err := storage.NewDynamoDBClient(ctx, cfg)
//	backend, err := storage.NewDynamoDBBackend(client, cfg)
package storage
