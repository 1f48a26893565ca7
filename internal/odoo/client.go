package odoo

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout bounds each remote round trip when the config does not set
// its own, keeping calls within an interactive request budget.
const DefaultTimeout = 10 * time.Second

// Config holds the connection parameters for one Odoo instance. All fields
// except Timeout are required. A Config is constructed fresh per client and
// is never persisted by this package.
type Config struct {
	URL      string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is a typed wrapper around one Odoo instance's XML-RPC endpoints.
// Each client is exclusively owned by the request that constructed it and
// must not be shared across tenants: credentials differ per tenant and the
// cached uid is never validated for staleness. Concurrent calls on one
// instance are safe, but ordering between them is not guaranteed.
type Client struct {
	cfg Config
	tr  Transport

	mu  sync.Mutex
	uid int64
}

// New creates a client talking HTTP XML-RPC to cfg.URL.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg, tr: newHTTPTransport(cfg.URL, cfg.Timeout)}
}

// NewWithTransport creates a client over a caller-supplied transport. Tests
// use this to substitute a fake.
func NewWithTransport(cfg Config, tr Transport) *Client {
	return &Client{cfg: cfg, tr: tr}
}

// Connect calls the remote authenticate procedure and caches the returned
// uid. Every call re-authenticates and overwrites the cache; there is no
// short-circuit on an existing session. Returns an *AuthenticationError on
// any remote error or a falsy uid.
func (c *Client) Connect(ctx context.Context) (int64, error) {
	res, err := c.tr.Call(ctx, endpointCommon, "authenticate",
		[]interface{}{c.cfg.Database, c.cfg.Username, c.cfg.Password, map[string]interface{}{}})
	if err != nil {
		return 0, &AuthenticationError{Message: err.Error()}
	}

	// authenticate returns boolean false for bad credentials.
	uid, ok := res.(int64)
	if !ok || uid <= 0 {
		return 0, &AuthenticationError{Message: "invalid credentials"}
	}

	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
	return uid, nil
}

// UID returns the cached session uid, or zero if the client has not
// authenticated yet.
func (c *Client) UID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uid
}

func (c *Client) ensureUID(ctx context.Context) (int64, error) {
	if uid := c.UID(); uid != 0 {
		return uid, nil
	}
	return c.Connect(ctx)
}

// executeKw issues execute_kw(db, uid, password, model, method, args, kwargs)
// against the object endpoint, authenticating first if needed.
func (c *Client) executeKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	uid, err := c.ensureUID(ctx)
	if err != nil {
		return nil, err
	}

	params := []interface{}{c.cfg.Database, uid, c.cfg.Password, model, method, args}
	if kwargs != nil {
		params = append(params, kwargs)
	}

	res, err := c.tr.Call(ctx, endpointObject, "execute_kw", params)
	if err != nil {
		return nil, &RemoteCallError{Model: model, Method: method, Err: err}
	}
	return res, nil
}

// Search returns the ids of records matching the domain, an Odoo filter
// expression of (field, operator, value) triples passed through opaquely.
// Zero matches yield an empty slice, not an error.
func (c *Client) Search(ctx context.Context, model string, domain []interface{}) ([]int64, error) {
	if domain == nil {
		domain = []interface{}{}
	}
	res, err := c.executeKw(ctx, model, "search", []interface{}{domain}, nil)
	if err != nil {
		return nil, err
	}
	return toIDs(model, "search", res)
}

// Read fetches the given record ids. An empty id list short-circuits to an
// empty result without a remote call: passing no ids to the remote read
// would mean "read everything".
func (c *Client) Read(ctx context.Context, model string, ids []int64, fields []string) ([]map[string]interface{}, error) {
	if len(ids) == 0 {
		return []map[string]interface{}{}, nil
	}

	var kwargs map[string]interface{}
	if len(fields) > 0 {
		kwargs = map[string]interface{}{"fields": fields}
	}

	res, err := c.executeKw(ctx, model, "read", []interface{}{ids}, kwargs)
	if err != nil {
		return nil, err
	}
	return toRecords(model, "read", res)
}

// Create inserts one record and returns its new id.
func (c *Client) Create(ctx context.Context, model string, values map[string]interface{}) (int64, error) {
	res, err := c.executeKw(ctx, model, "create", []interface{}{values}, nil)
	if err != nil {
		return 0, err
	}
	id, ok := res.(int64)
	if !ok {
		return 0, &RemoteCallError{Model: model, Method: "create",
			Err: &Fault{Message: "remote returned a non-integer id"}}
	}
	return id, nil
}

// Write updates the given records and returns the remote acknowledgement.
// The write is not verified by re-reading.
func (c *Client) Write(ctx context.Context, model string, ids []int64, values map[string]interface{}) (bool, error) {
	res, err := c.executeKw(ctx, model, "write", []interface{}{ids, values}, nil)
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

// Delete unlinks the given records and returns the remote acknowledgement.
func (c *Client) Delete(ctx context.Context, model string, ids []int64) (bool, error) {
	res, err := c.executeKw(ctx, model, "unlink", []interface{}{ids}, nil)
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

// TestResult reports the outcome of a connectivity probe.
type TestResult struct {
	Success bool   `json:"success"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestConnection authenticates and probes the server version. Unlike every
// other operation it converts all failures into the result value, so "test
// my credentials" flows never need error handling.
func (c *Client) TestConnection(ctx context.Context) TestResult {
	if _, err := c.Connect(ctx); err != nil {
		return TestResult{Error: err.Error()}
	}

	res, err := c.tr.Call(ctx, endpointCommon, "version", nil)
	if err != nil {
		return TestResult{Error: err.Error()}
	}

	result := TestResult{Success: true}
	if info, ok := res.(map[string]interface{}); ok {
		if v, ok := info["server_version"].(string); ok {
			result.Version = v
		}
	}
	return result
}

func toIDs(model, method string, res interface{}) ([]int64, error) {
	raw, ok := res.([]interface{})
	if !ok {
		return nil, &RemoteCallError{Model: model, Method: method,
			Err: &Fault{Message: "remote returned a non-array result"}}
	}
	ids := make([]int64, 0, len(raw))
	for _, el := range raw {
		id, ok := el.(int64)
		if !ok {
			return nil, &RemoteCallError{Model: model, Method: method,
				Err: &Fault{Message: "remote returned a non-integer id"}}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func toRecords(model, method string, res interface{}) ([]map[string]interface{}, error) {
	raw, ok := res.([]interface{})
	if !ok {
		return nil, &RemoteCallError{Model: model, Method: method,
			Err: &Fault{Message: "remote returned a non-array result"}}
	}
	records := make([]map[string]interface{}, 0, len(raw))
	for _, el := range raw {
		rec, ok := el.(map[string]interface{})
		if !ok {
			return nil, &RemoteCallError{Model: model, Method: method,
				Err: &Fault{Message: "remote returned a non-record element"}}
		}
		records = append(records, rec)
	}
	return records, nil
}
