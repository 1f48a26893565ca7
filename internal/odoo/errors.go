package odoo

import "fmt"

// AuthenticationError is returned when the remote authenticate call rejects
// the stored credentials or returns a falsy uid. It is never retried
// automatically; the caller decides whether to retry.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return "odoo: authentication failed: " + e.Message
}

// RemoteCallError wraps a transport failure or a remote-side fault raised
// during a model operation (invalid model, permission denied, malformed
// domain, and so on).
type RemoteCallError struct {
	Model  string
	Method string
	Err    error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("odoo: %s.%s: %v", e.Model, e.Method, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// Fault is an XML-RPC fault returned by the remote server, carrying the
// faultCode and faultString members verbatim.
type Fault struct {
	Code    int64
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.Message)
}
