// Package richhistory defines the query history domain: the entry record,
// search filters, settings, the warning/error taxonomy, and the Storage
// capability every backend variant satisfies.
//
// # Architecture
//
// The rich history system consists of four layers:
//
//  1. Entry Model - Entry, NewEntry, DataSourceRef and SearchFilters (this package)
//  2. Policy components - duplicate detection (dedup) and capacity enforcement (capacity)
//  3. Search Engine - filter validation and in-memory search (query)
//  4. Storage Service - the orchestrator implementing Storage (service) on top of
//     a backing store (storage: memory, SQLite, DynamoDB)
//
// # Entries
//
// Each entry captures:
//   - A store-assigned ID (UUID v7) and creation time
//   - The originating data source, normalized to a UID/name pair
//   - The executed query payload, kept as canonical JSON
//   - A starred flag and an optional comment, both mutable
//
// # Adding Entries
//
// Adding an entry runs through the orchestrator:
//
//	NewEntry (caller fields)
//	     ↓
//	Resolve data source reference → DataSource{UID, Name}
//	     ↓
//	Canonicalize payload
//	     ↓
//	Duplicate check (same data source + structurally equal payload)
//	     ↓
//	Capacity plan (evict oldest non-starred entries)
//	     ↓
//	Atomic commit (insert + evictions)
//
// A duplicate fails with ErrDuplicatedEntry. A backend that cannot take the
// entry even after eviction fails with ErrStorageFull and nothing changes.
// An add that had to evict (or could not get back under the limit because
// the remaining entries are starred) succeeds and carries a LimitExceeded
// warning in AddResult.Warning.
//
// # Basic Usage
//
//	backend := storage.NewMemoryBackend(nil)
//	svc := service.New(backend, resolver, &service.Config{MaxEntries: 10000})
//
//	res, err := svc.AddToRichHistory(ctx, richhistory.NewEntry{
//	    DataSource: richhistory.RefByUID("prom-1"),
//	    Queries:    json.RawMessage(`[{"expr":"up"}]`),
//	})
//	switch {
//	case errors.Is(err, richhistory.ErrDuplicatedEntry):
//	    // already in history
//	case err != nil:
//	    return err
//	case res.Warning != nil:
//	    fmt.Println(res.Warning.Message)
//	}
//
// # Thread Safety
//
// Storage implementations serialize mutations and allow concurrent reads.
// Reads never observe a partially committed add.
package richhistory
