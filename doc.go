// Package deta provides a Go client library for Deta Base, the
// document-oriented key-value store of the Deta cloud. It offers typed,
// context-aware access to bases with automatic retries, circuit breaking,
// and pluggable observability.
//
// # Features
//
// The client provides:
//   - Record CRUD with server-assigned or caller-chosen keys
//   - Batch writes of up to 25 records per call
//   - Conditional inserts that fail on existing keys
//   - Partial updates: set, increment, append, prepend, delete fields
//   - Structured queries with lazy pagination
//   - Automatic retries with exponential backoff for transient failures
//   - Circuit breaker pattern for fault tolerance
//   - Context support for cancellation and timeouts
//   - Structured logging and Prometheus metrics via observers
//
// # Basic Usage
//
// Create a client and work with a base:
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/deta-community/deta-go"
//	)
//
//	func main() {
//	    // Reads the project key from DETA_PROJECT_KEY
//	    client, err := deta.NewClient(nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer client.Close()
//
//	    ctx := context.Background()
//	    users := client.Base("users")
//
//	    // Store a record
//	    _, err = users.Put(ctx, deta.Record{
//	        "key":   "alice",
//	        "name":  "Alice",
//	        "email": "alice@example.com",
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Retrieve it
//	    record, err := users.Get(ctx, "alice")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Println(record.String("name"))
//	}
//
// # Configuration
//
// The client is configured using a fluent builder pattern:
//
//	config := deta.DefaultConfig().
//	    WithProjectKey("a0abcyxz_aSecretValue").
//	    WithTimeout(10 * time.Second).
//	    WithRetries(3).
//	    WithCircuitBreaker(deta.DefaultCircuitBreakerConfig())
//
//	client, err := deta.NewClient(config)
//
// # Error Handling
//
// Errors carry a type, a retryability flag, and request context. Helper
// predicates cover the common cases:
//
//	record, err := users.Get(ctx, "missing")
//	if deta.IsNotFound(err) {
//	    // Key does not exist
//	}
//
//	_, err = users.Insert(ctx, record)
//	if deta.IsConflict(err) {
//	    // Key already taken; stored record untouched
//	}
//
//	var detaErr *deta.Error
//	if errors.As(err, &detaErr) {
//	    log.Printf("type=%s retryable=%v", detaErr.Type, detaErr.IsRetryable())
//	}
//
// # Queries
//
// Queries combine filters with OR semantics; conditions within a filter
// are ANDed. Results paginate via a cursor, which the iterator follows
// automatically:
//
//	q := deta.NewQuery(
//	    deta.Filter{}.Gt("age", 25).Prefix("name", "A"),
//	)
//
//	it := users.Query(q, nil)
//	for it.Next(ctx) {
//	    log.Println(it.Record().Key())
//	}
//	if err := it.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Partial Updates
//
// Updates mutate stored records in place without a read-modify-write
// round trip:
//
//	update := deta.NewUpdate().
//	    Set("email", "alice@deta.dev").
//	    Increment("logins", 1).
//	    Append("tags", "admin").
//	    Delete("legacy_field")
//
//	err := users.Update(ctx, "alice", update)
//
// # Type-Safe Operations
//
// Generic wrappers decode records directly into Go types:
//
//	type User struct {
//	    Key   string `json:"key"`
//	    Name  string `json:"name"`
//	    Email string `json:"email"`
//	}
//
//	typed := deta.NewTypedBase[User](users)
//	user, err := typed.Get(ctx, "alice")
//
// # Observability
//
// Observers receive hooks for request lifecycle, retries, and circuit
// breaker transitions. LogObserver emits structured logs via logrus;
// PrometheusObserver exports request counters and latency histograms:
//
//	reg := prometheus.NewRegistry()
//	config := deta.DefaultConfig().WithObserver(deta.NewCompositeObserver(
//	    deta.NewLogObserver(nil),
//	    deta.NewPrometheusObserver(reg),
//	))
package deta
