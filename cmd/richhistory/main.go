// Richhistory manages a bounded, searchable history of executed queries.
//
// Usage:
//
//	# Record a query
//	richhistory add --datasource prom --query '[{"expr":"up"}]'
//
//	# Search the history
//	richhistory list --search rate --datasource prom --starred
//
//	# Star and comment an entry
//	richhistory star 0190b6f0-...
//	richhistory comment 0190b6f0-... "p99 latency"
//
//	# Export everything
//	richhistory export --format csv -o history.csv
//
//	# Run scheduled retention and the metrics endpoint
//	richhistory serve
package main

func main() {
	Execute()
}
