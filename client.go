package deta

import (
	"context"
	"fmt"
	"sync"
)

// MaxBatchSize is the largest number of records accepted by a single Put.
// Larger batches are rejected locally without a network round trip.
const MaxBatchSize = 25

// Client is a Deta Base client. It holds the authenticated transport and
// hands out Base handles. A Client is safe for concurrent use by multiple
// goroutines.
type Client struct {
	transport *httpTransport
	config    *Config
	projectID string

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client from the given configuration. A nil config
// uses DefaultConfig, which reads the project key from DETA_PROJECT_KEY.
//
// Example:
//
//	client, err := deta.NewClient(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	users := client.Base("users")
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	pid, err := projectID(config.ProjectKey)
	if err != nil {
		return nil, err
	}

	transport, err := newHTTPTransport(config)
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: transport,
		config:    config,
		projectID: pid,
	}, nil
}

// Base returns a handle on the named base. The base is created lazily by
// the service on first write; Base itself performs no I/O.
func (c *Client) Base(name string) *Base {
	return &Base{
		client: c,
		name:   name,
	}
}

// ProjectID returns the project identifier derived from the project key.
func (c *Client) ProjectID() string {
	return c.projectID
}

// Close releases the client's idle connections. Calling Close more than
// once is safe; operations on a closed client fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.transport.close()
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return NewError(ErrorTypeClient, "client is closed", ErrClientClosed)
	}
	return nil
}

// Base is a handle on a single named base within a project. Handles are
// cheap; create one per base and share it across goroutines.
type Base struct {
	client *Client
	name   string
}

// Name returns the base's name.
func (b *Base) Name() string {
	return b.name
}

// Get retrieves the record stored under key. It returns an error
// satisfying IsNotFound when the key does not exist.
func (b *Base) Get(ctx context.Context, key string) (Record, error) {
	if err := b.client.checkClosed(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, NewError(ErrorTypeValidation, "key cannot be empty", ErrEmptyKey)
	}

	var record Record
	path := buildPath("/{0}/{1}/items/{2}", b.client.projectID, b.name, key)
	if err := b.client.transport.get(ctx, path, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// Put stores up to MaxBatchSize records, overwriting any existing records
// with the same keys. Records without a key field get server-assigned
// keys, reported in the result's Processed list.
func (b *Base) Put(ctx context.Context, records ...Record) (*PutResult, error) {
	if err := b.client.checkClosed(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &PutResult{}, nil
	}
	if len(records) > MaxBatchSize {
		return nil, NewError(ErrorTypeValidation,
			fmt.Sprintf("cannot put more than %d records at once (got %d)", MaxBatchSize, len(records)),
			ErrBatchTooLarge)
	}

	var resp putResponse
	path := buildPath("/{0}/{1}/items", b.client.projectID, b.name)
	if err := b.client.transport.put(ctx, path, putRequest{Items: records}, &resp); err != nil {
		return nil, err
	}

	result := &PutResult{}
	if resp.Processed != nil {
		result.Processed = resp.Processed.Items
	}
	if resp.Failed != nil {
		result.Failed = resp.Failed.Items
	}
	return result, nil
}

// PutValue wraps a non-object value in a record and stores it under key.
// The value is readable back via Get as record["value"].
func (b *Base) PutValue(ctx context.Context, key string, value interface{}) (*PutResult, error) {
	record, err := toRecord(value, key)
	if err != nil {
		return nil, err
	}
	return b.Put(ctx, record)
}

// Insert stores a record only if its key is not already taken, returning
// the stored key. It returns an error satisfying IsConflict when the key
// exists; the stored record is left untouched.
func (b *Base) Insert(ctx context.Context, record Record) (string, error) {
	if err := b.client.checkClosed(); err != nil {
		return "", err
	}

	var stored Record
	path := buildPath("/{0}/{1}/items", b.client.projectID, b.name)
	if err := b.client.transport.post(ctx, path, insertRequest{Item: record}, &stored); err != nil {
		return "", err
	}
	return stored.Key(), nil
}

// Update applies a partial update to the record stored under key. It
// returns an error satisfying IsNotFound when the key does not exist, and
// a validation error when the update is nil or empty.
func (b *Base) Update(ctx context.Context, key string, update *Update) error {
	if err := b.client.checkClosed(); err != nil {
		return err
	}
	if key == "" {
		return NewError(ErrorTypeValidation, "key cannot be empty", ErrEmptyKey)
	}
	if update == nil || update.IsEmpty() {
		return NewError(ErrorTypeValidation, "update has no operations", ErrInvalidConfig)
	}

	path := buildPath("/{0}/{1}/items/{2}", b.client.projectID, b.name, key)
	return b.client.transport.patch(ctx, path, update.payload(), nil)
}

// Delete removes the record stored under key. Deleting a key that does
// not exist is not an error.
func (b *Base) Delete(ctx context.Context, key string) error {
	if err := b.client.checkClosed(); err != nil {
		return err
	}
	if key == "" {
		return NewError(ErrorTypeValidation, "key cannot be empty", ErrEmptyKey)
	}

	path := buildPath("/{0}/{1}/items/{2}", b.client.projectID, b.name, key)
	return b.client.transport.delete(ctx, path, nil)
}

// Fetch runs a query and returns a single page of results. A nil or
// empty query matches every record. Pass the returned page's Last cursor
// back via FetchOptions to continue.
func (b *Base) Fetch(ctx context.Context, query Query, opts *FetchOptions) (*Page, error) {
	if err := b.client.checkClosed(); err != nil {
		return nil, err
	}

	req := queryRequest{Query: query}
	if opts != nil {
		req.Limit = opts.Limit
		req.Last = opts.Last
	}

	var resp queryResponse
	path := buildPath("/{0}/{1}/query", b.client.projectID, b.name)
	if err := b.client.transport.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}

	return &Page{
		Items: resp.Items,
		Last:  resp.Paging.Last,
		Size:  resp.Paging.Size,
	}, nil
}

// Query returns an iterator over all records matching the query, fetching
// pages lazily as the iterator advances.
func (b *Base) Query(query Query, opts *FetchOptions) *QueryIterator {
	it := &QueryIterator{
		base:  b,
		query: query,
	}
	if opts != nil {
		it.limit = opts.Limit
		it.last = opts.Last
	}
	return it
}
