// Package backend is the typed HTTP client for the platform API. It speaks
// the platform's response envelope, attaches per-session bearer tokens and
// performs the single 401-triggered refresh-and-retry. All business state
// lives upstream; this package only maps wire shapes onto Go types.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payloom.io/internal/obs"
)

const defaultTimeout = 30 * time.Second

// Meta is the pagination block attached to list responses.
type Meta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelope covers both wire shapes: {success, data|error} and the
// paginated {data, meta} form.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *Meta           `json:"meta"`
	Error   *errorBody      `json:"error"`
}

// Client issues requests against the platform API base URL.
type Client struct {
	baseURL string
	http    *http.Client

	Auth          *AuthService
	Onboarding    *OnboardingService
	KYC           *KYCService
	Roles         *RoleService
	Transactions  *TransactionService
	Disbursements *DisbursementService
	PaymentPages  *PaymentPageService
	Notifications *NotificationService
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom
// transports).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New constructs a client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid base URL: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Auth = &AuthService{c: c}
	c.Onboarding = &OnboardingService{c: c}
	c.KYC = &KYCService{c: c}
	c.Roles = &RoleService{c: c}
	c.Transactions = &TransactionService{c: c}
	c.Disbursements = &DisbursementService{c: c}
	c.PaymentPages = &PaymentPageService{c: c}
	c.Notifications = &NotificationService{c: c}
	return c, nil
}

// request describes one upstream call.
type request struct {
	method   string
	path     string
	query    url.Values
	body     any
	headers  map[string]string
	rawBody  []byte // pre-encoded body (multipart); takes precedence over body
	public   bool   // auth/public route: no bearer token, no refresh flow
	out      any
	meta     *Meta
	resource string // metric label
}

// do executes the request, decoding the response envelope into req.out.
// On 401 for a non-public route it refreshes the session token exactly
// once and retries; a second 401 (or a failed refresh) invalidates the
// session and returns ErrSessionExpired.
func (c *Client) do(ctx context.Context, req request) error {
	ts, haveTS := TokenSourceFromContext(ctx)
	var token string
	if !req.public && haveTS {
		var err error
		token, err = ts.Token(ctx)
		if err != nil {
			return err
		}
	}

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.public {
		drain(resp)
		if !haveTS {
			return ErrSessionExpired
		}
		fresh, err := ts.Refresh(ctx)
		if err != nil {
			_ = ts.Invalidate(ctx)
			return ErrSessionExpired
		}
		// One retry only; a second 401 means the session is gone.
		resp, err = c.send(ctx, req, fresh)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			_ = ts.Invalidate(ctx)
			return ErrSessionExpired
		}
	}

	return c.decode(resp, req.out, req.meta)
}

func (c *Client) send(ctx context.Context, req request, token string) (*http.Response, error) {
	var body io.Reader
	switch {
	case req.rawBody != nil:
		body = bytes.NewReader(req.rawBody)
	case req.body != nil:
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("backend: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, err
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", req.method, req.path, err)
	}
	if req.resource != "" {
		obs.ObserveUpstream(req.resource, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) decode(resp *http.Response, out any, meta *Meta) error {
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("backend: read response: %w", err)
	}

	var env envelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil {
			if resp.StatusCode >= 400 {
				return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
			return fmt.Errorf("backend: decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || (env.Success != nil && !*env.Success) {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if meta != nil && env.Meta != nil {
		*meta = *env.Meta
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("backend: decode data: %w", err)
		}
	}
	return nil
}

// Export is a binary report produced by the backend. The console streams it
// through unchanged; there is no resumable or chunked handling.
type Export struct {
	FileName    string
	ContentType string
	Content     []byte
}

// doExport fetches a binary blob. Errors still arrive in the JSON envelope
// and keep the backend's own message.
func (c *Client) doExport(ctx context.Context, req request) (Export, error) {
	ts, haveTS := TokenSourceFromContext(ctx)
	var token string
	if haveTS {
		var err error
		token, err = ts.Token(ctx)
		if err != nil {
			return Export{}, err
		}
	}

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return Export{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized && haveTS {
		drain(resp)
		fresh, err := ts.Refresh(ctx)
		if err != nil {
			_ = ts.Invalidate(ctx)
			return Export{}, ErrSessionExpired
		}
		resp, err = c.send(ctx, req, fresh)
		if err != nil {
			return Export{}, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			_ = ts.Invalidate(ctx)
			return Export{}, ErrSessionExpired
		}
	}

	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		var env envelope
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if json.Unmarshal(payload, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return Export{}, apiErr
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return Export{}, fmt.Errorf("backend: read export: %w", err)
	}
	return Export{
		FileName:    exportFileName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// doMultipart uploads files plus form fields, decoding the envelope like do.
func (c *Client) doMultipart(ctx context.Context, path, resource string, fields map[string]string, files []filePart, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("backend: build form: %w", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			return fmt.Errorf("backend: build form: %w", err)
		}
		if _, err := part.Write(f.content); err != nil {
			return fmt.Errorf("backend: build form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("backend: build form: %w", err)
	}

	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     path,
		rawBody:  buf.Bytes(),
		headers:  map[string]string{"Content-Type": mw.FormDataContentType()},
		out:      out,
		resource: resource,
	})
}

type filePart struct {
	field   string
	name    string
	content []byte
}

func exportFileName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func pageQuery(page, per int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if per > 0 {
		q.Set("per_page", fmt.Sprint(per))
	}
	return q
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
