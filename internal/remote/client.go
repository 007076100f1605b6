// Package remote talks to the Remote Todo Service over its JSON REST API:
//
//	GET    /todos?limit=&skip=   -> { todos, total, skip, limit }
//	POST   /todos/add            <- { id, todo, completed, userId }
//	PUT    /todos/{id}           <- { completed } or { todo }
//	DELETE /todos/{id}
//
// Any non-2xx status is a failure.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/idilsaglam/tasklist/internal/errs"
	"github.com/idilsaglam/tasklist/internal/logging"
	"github.com/idilsaglam/tasklist/internal/model"
)

// RequestIDHeader carries a fresh id on every request.
const RequestIDHeader = "X-Request-Id"

// maxBody bounds how much of a response we read.
const maxBody = 4 << 20

// Page is one slice of the remote collection.
type Page struct {
	Todos []model.Todo `json:"todos"`
	Total int          `json:"total"`
	Skip  int          `json:"skip"`
	Limit int          `json:"limit"`
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 means unlimited
	Burst             int
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// Client is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *log.Logger
	schema  *jsonschema.Schema
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url: not absolute: %q", opts.BaseURL)
	}
	schema, err := compileListSchema()
	if err != nil {
		return nil, err
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		base:    base,
		http:    hc,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		schema:  schema,
	}, nil
}

// List fetches limit todos starting at skip.
func (c *Client) List(ctx context.Context, limit, skip int) (Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))

	body, err := c.do(ctx, http.MethodGet, "/todos", q, nil, "list todos")
	if err != nil {
		return Page{}, err
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Page{}, errs.Wrap(errs.Decode, "list todos: invalid json", err)
	}
	if err := c.schema.Validate(raw); err != nil {
		return Page{}, errs.New(errs.Decode, "list todos: unexpected response: "+firstViolation(err))
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return Page{}, errs.Wrap(errs.Decode, "list todos: decode", err)
	}
	if page.Todos == nil {
		page.Todos = []model.Todo{}
	}
	return page, nil
}

// Add posts a new todo, including its locally assigned id.
func (c *Client) Add(ctx context.Context, t model.Todo) error {
	_, err := c.do(ctx, http.MethodPost, "/todos/add", nil, t, "add todo")
	return err
}

// SetCompleted updates only the completed flag.
func (c *Client) SetCompleted(ctx context.Context, id int, completed bool) error {
	_, err := c.do(ctx, http.MethodPut, todoPath(id), nil,
		struct {
			Completed bool `json:"completed"`
		}{completed}, "update todo")
	return err
}

// SetText updates only the text.
func (c *Client) SetText(ctx context.Context, id int, text string) error {
	_, err := c.do(ctx, http.MethodPut, todoPath(id), nil,
		struct {
			Text string `json:"todo"`
		}{text}, "update todo")
	return err
}

// Delete removes a todo.
func (c *Client) Delete(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, todoPath(id), nil, nil, "delete todo")
	return err
}

func todoPath(id int) string {
	return "/todos/" + strconv.Itoa(id)
}

// do runs one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, in any, what string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.Transport, what, err)
	}

	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, what+": encode", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, what, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return nil, errs.Wrap(errs.Transport, what, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errs.Wrap(errs.Transport, what+": read body", err)
	}
	c.logger.Debug("request",
		"method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "took", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if msg := gjson.GetBytes(body, "message").String(); msg != "" {
			return nil, errs.HTTPStatus(resp.StatusCode, what+" ("+msg+")")
		}
		return nil, errs.HTTPStatus(resp.StatusCode, what)
	}
	return body, nil
}
