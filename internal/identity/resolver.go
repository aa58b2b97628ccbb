package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Resolver turns an opaque chat-platform user handle into a display name.
// Resolution is an external call; a failure means the triggering event
// cannot be attributed and must be dropped, never persisted.
type Resolver interface {
	Resolve(ctx context.Context, handle string) (string, error)
}

// LookupError reports an unresolvable handle or a failed remote call.
type LookupError struct {
	Handle string
	Cause  error
}

func (e LookupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("identity lookup for %q failed: %v", e.Handle, e.Cause)
	}
	return fmt.Sprintf("identity lookup for %q failed", e.Handle)
}

func (e LookupError) Unwrap() error { return e.Cause }

// HTTPResolver queries the platform's user-info endpoint. There is no retry
// and no timeout beyond the request context: a stalled lookup stalls only
// the message that triggered it.
type HTTPResolver struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{BaseURL: baseURL, Client: http.DefaultClient}
}

func (r *HTTPResolver) Resolve(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", LookupError{Handle: handle}
	}
	u := r.BaseURL + "/users/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", LookupError{Handle: handle, Cause: err}
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", LookupError{Handle: handle, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", LookupError{Handle: handle, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", LookupError{Handle: handle, Cause: err}
	}
	if body.DisplayName == "" {
		return "", LookupError{Handle: handle, Cause: fmt.Errorf("empty display name")}
	}
	return body.DisplayName, nil
}

// StaticResolver serves lookups from a fixed map. Used in tests and for
// local runs without a platform connection.
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, handle string) (string, error) {
	name, ok := r[handle]
	if !ok {
		return "", LookupError{Handle: handle}
	}
	return name, nil
}
