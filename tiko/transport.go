package tiko

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

const (
	graphqlPath = "/api/v3/graphql/"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/131.0.0.0 Safari/537.36"
)

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type graphqlReply struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// transport is the mechanical wire boundary. No retry logic lives
// here; it reports what the network and the service said. The cookie
// jar carries the session cookies set by the primer GET.
type transport struct {
	baseURL string
	http    *http.Client
	headers map[string]string
}

func newTransport(baseURL string, timeout time.Duration) *transport {
	baseURL = strings.TrimSuffix(baseURL, "/")
	jar, _ := cookiejar.New(nil)
	return &transport{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout, Jar: jar},
		headers: map[string]string{
			"Content-Type":    "application/json",
			"Accept":          "*/*",
			"Accept-Language": "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
			"Origin":          baseURL,
			"Referer":         baseURL + "/dashboard/",
			"User-Agent":      userAgent,
		},
	}
}

// prime performs the unauthenticated GET against the root URL that
// establishes the service's pre-session cookies. The body is ignored.
func (t *transport) prime(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return TransportError{Op: "prime", Err: err}
	}
	t.setHeaders(req, "")

	resp, err := t.http.Do(req)
	if err != nil {
		return TransportError{Op: "prime", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TransportError{Op: "prime", Err: HTTPStatusError{Status: resp.StatusCode}}
	}
	return nil
}

// call POSTs one GraphQL operation and returns the reply's data
// payload. token is attached as the bearer credential when set.
func (t *transport) call(ctx context.Context, token string, op graphqlRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(op)
	if err != nil {
		return nil, TransportError{Op: op.OperationName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+graphqlPath, bytes.NewReader(payload))
	if err != nil {
		return nil, TransportError{Op: op.OperationName, Err: err}
	}
	t.setHeaders(req, token)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, TransportError{Op: op.OperationName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransportError{Op: op.OperationName, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, TransportError{Op: op.OperationName, Err: HTTPStatusError{Status: resp.StatusCode, Body: string(body)}}
	}

	// An HTML error page with a 200 status is still a broken reply.
	if contentType := resp.Header.Get("Content-Type"); !strings.Contains(contentType, "application/json") {
		return nil, TransportError{
			Op:  op.OperationName,
			Err: fmt.Errorf("unexpected content type %q: %s", contentType, strings.TrimSpace(string(body))),
		}
	}

	var reply graphqlReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, TransportError{Op: op.OperationName, Err: fmt.Errorf("decode reply: %w", err)}
	}
	if len(reply.Errors) > 0 {
		return nil, classifyServiceError(reply.Errors[0].Message, token != "")
	}
	return reply.Data, nil
}

func (t *transport) setHeaders(req *http.Request, token string) {
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
}
