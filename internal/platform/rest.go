package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrNotFound is returned when the platform reports a missing row.
var ErrNotFound = errors.New("platform: not found")

// APIError carries a non-2xx platform response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform: status %d: %s", e.StatusCode, e.Message)
}

// Query builds one REST request against a table. No query semantics are
// evaluated locally; filters are passed through to the platform verbatim.
type Query struct {
	client *Client
	table  string
	params url.Values
}

// From starts a query against a table.
func (c *Client) From(table string) *Query {
	return &Query{
		client: c,
		table:  table,
		params: url.Values{},
	}
}

// Eq filters rows where column equals value.
func (q *Query) Eq(column, value string) *Query {
	q.params.Set(column, "eq."+value)
	return q
}

// In filters rows where column is one of the values.
func (q *Query) In(column string, values ...string) *Query {
	q.params.Set(column, "in.("+strings.Join(values, ",")+")")
	return q
}

// Order sorts results by column; descending when desc is true.
func (q *Query) Order(column string, desc bool) *Query {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Columns restricts the selected columns.
func (q *Query) Columns(cols ...string) *Query {
	q.params.Set("select", strings.Join(cols, ","))
	return q
}

// Select fetches matching rows into out.
func (q *Query) Select(ctx context.Context, out interface{}) error {
	if q.params.Get("select") == "" {
		q.params.Set("select", "*")
	}

	resp, err := q.client.rest.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q.params).
		SetResult(out).
		Get("/rest/v1/" + q.table)
	if err != nil {
		return fmt.Errorf("platform: select %s: %w", q.table, err)
	}
	return checkStatus(resp.StatusCode(), resp.String())
}

// Insert creates rows from body; the created representation lands in out
// when out is non-nil.
func (q *Query) Insert(ctx context.Context, body, out interface{}) error {
	req := q.client.rest.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(body)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Post("/rest/v1/" + q.table)
	if err != nil {
		return fmt.Errorf("platform: insert %s: %w", q.table, err)
	}
	return checkStatus(resp.StatusCode(), resp.String())
}

// Update patches rows matching the accumulated filters.
func (q *Query) Update(ctx context.Context, body, out interface{}) error {
	req := q.client.rest.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParamsFromValues(q.params).
		SetBody(body)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Patch("/rest/v1/" + q.table)
	if err != nil {
		return fmt.Errorf("platform: update %s: %w", q.table, err)
	}
	return checkStatus(resp.StatusCode(), resp.String())
}

// Delete removes rows matching the accumulated filters.
func (q *Query) Delete(ctx context.Context) error {
	resp, err := q.client.rest.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q.params).
		Delete("/rest/v1/" + q.table)
	if err != nil {
		return fmt.Errorf("platform: delete %s: %w", q.table, err)
	}
	return checkStatus(resp.StatusCode(), resp.String())
}

// RPC invokes a remote procedure with args, decoding the response into out
// when out is non-nil.
func (c *Client) RPC(ctx context.Context, fn string, args, out interface{}) error {
	req := c.rest.R().
		SetContext(ctx).
		SetBody(args)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Post("/rest/v1/rpc/" + fn)
	if err != nil {
		return fmt.Errorf("platform: rpc %s: %w", fn, err)
	}
	return checkStatus(resp.StatusCode(), resp.String())
}

func checkStatus(code int, body string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return &APIError{StatusCode: code, Message: strings.TrimSpace(body)}
	}
}
