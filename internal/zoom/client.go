// Package zoom is a small client for the parts of the Zoom REST API the
// connector reads and writes. Every failure is returned as a *syncerr.Error so
// callers can decide between retrying, pausing and giving up.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kippnorcal/zoom/internal/syncerr"
)

const (
	DefaultBaseURL  = "https://api.zoom.us/v2"
	DefaultPageSize = 300
	DefaultTimeout  = 30 * time.Second

	// Zoom's payload code for a resource that no longer exists.
	codeNotFound = 3001
	// Zoom's payload code for an exhausted rate limit.
	codeRateLimited = 429
	// Zoom's payload code for creating a user the account already has.
	codeUserExists = 1005

	maxBody    = 16 << 20
	maxErrBody = 2048
)

// RawSink receives every successful response body. It is used to archive raw
// pages and must not block for long.
type RawSink func(ctx context.Context, op string, body []byte)

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	pageSize   int
	logger     *slog.Logger
	sink       RawSink
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRawSink registers a sink for raw response bodies.
func WithRawSink(sink RawSink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		pageSize:   DefaultPageSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListUsers returns one page of account users. Pages are numbered from 1.
func (c *Client) ListUsers(ctx context.Context, pageNumber int) (*UserPage, error) {
	q := c.pageQuery()
	q.Set("page_number", strconv.Itoa(pageNumber))

	var page UserPage
	if err := c.do(ctx, "list users", http.MethodGet, "/users", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListGroups returns every group of the account.
func (c *Client) ListGroups(ctx context.Context) (*GroupList, error) {
	var list GroupList
	if err := c.do(ctx, "list groups", http.MethodGet, "/groups", nil, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListGroupMembers returns one page of a group's members.
func (c *Client) ListGroupMembers(ctx context.Context, groupID string, pageNumber int) (*MemberPage, error) {
	q := c.pageQuery()
	q.Set("page_number", strconv.Itoa(pageNumber))

	var page MemberPage
	path := "/groups/" + url.PathEscape(groupID) + "/members"
	if err := c.do(ctx, "list group members", http.MethodGet, path, q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListMeetings returns one page of past meetings that started between from
// and to, both inclusive calendar dates.
func (c *Client) ListMeetings(ctx context.Context, from, to time.Time, token string) (*MeetingPage, error) {
	q := c.pageQuery()
	q.Set("type", "past")
	q.Set("from", from.Format(time.DateOnly))
	q.Set("to", to.Format(time.DateOnly))
	if token != "" {
		q.Set("next_page_token", token)
	}

	var page MeetingPage
	if err := c.do(ctx, "list meetings", http.MethodGet, "/metrics/meetings", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListParticipants returns one page of the attendees of a past meeting
// instance.
func (c *Client) ListParticipants(ctx context.Context, meetingUUID, token string) (*ParticipantPage, error) {
	q := c.pageQuery()
	q.Set("type", "past")
	if token != "" {
		q.Set("next_page_token", token)
	}

	var page ParticipantPage
	path := "/metrics/meetings/" + EncodeUUID(meetingUUID) + "/participants"
	if err := c.do(ctx, "list participants", http.MethodGet, path, q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMeeting returns a meeting with its settings.
func (c *Client) GetMeeting(ctx context.Context, meetingID string) (*MeetingDetail, error) {
	var detail MeetingDetail
	path := "/meetings/" + url.PathEscape(meetingID)
	if err := c.do(ctx, "get meeting", http.MethodGet, path, nil, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, info UserInfo) (*CreatedUser, error) {
	body := createUserRequest{Action: "create", UserInfo: info}

	var created CreatedUser
	if err := c.do(ctx, "create user", http.MethodPost, "/users", nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// AddGroupMembers adds accounts to a group by email.
func (c *Client) AddGroupMembers(ctx context.Context, groupID string, emails []string) (*AddedMembers, error) {
	body := addMembersRequest{Members: make([]memberRef, 0, len(emails))}
	for _, email := range emails {
		body.Members = append(body.Members, memberRef{Email: email})
	}

	var added AddedMembers
	path := "/groups/" + url.PathEscape(groupID) + "/members"
	if err := c.do(ctx, "add group members", http.MethodPost, path, nil, body, &added); err != nil {
		return nil, err
	}
	return &added, nil
}

// EncodeUUID escapes a meeting UUID twice. Zoom requires this for UUIDs that
// begin with "/" or contain "//", and accepts it for all others.
func EncodeUUID(uuid string) string {
	return escape(escape(uuid))
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func (c *Client) pageQuery() url.Values {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(c.pageSize))
	return q
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return syncerr.New(syncerr.CodeInvalidInput, op, err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return syncerr.New(syncerr.CodeInvalidInput, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return transportError(ctx, op, err)
	}

	c.logger.Debug("zoom request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := classify(op, resp.StatusCode, data); err != nil {
		return err
	}
	if c.sink != nil {
		c.sink(ctx, op, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &syncerr.Error{
			Code:   syncerr.CodeUnknown,
			Op:     op,
			Status: resp.StatusCode,
			Body:   truncate(data),
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return syncerr.New(syncerr.CodeTimeout, op, err)
	}
	return syncerr.New(syncerr.CodeNetwork, op, err)
}

// classify maps a response to an error, or nil when it carries data. Zoom
// sometimes signals throttling and missing resources in the payload rather
// than the status line, so the envelope is checked first.
func classify(op string, status int, data []byte) error {
	var env apiError
	if len(data) > 0 && data[0] == '{' {
		_ = json.Unmarshal(data, &env)
	}

	var code syncerr.Code
	switch {
	case status == http.StatusTooManyRequests || env.Code == codeRateLimited:
		code = syncerr.CodeRateLimit
	case status >= 500:
		code = syncerr.CodeUnavailable
	case env.Code == codeNotFound || status == http.StatusNotFound:
		code = syncerr.CodeNotFound
	case env.Code == codeUserExists || status == http.StatusConflict:
		code = syncerr.CodeConflict
	case status == http.StatusUnauthorized:
		code = syncerr.CodeUnauthorized
	case status >= 400:
		code = syncerr.CodeInvalidInput
	default:
		return nil
	}

	var cause error
	if env.Message != "" {
		cause = fmt.Errorf("zoom code %d: %s", env.Code, env.Message)
	}
	return &syncerr.Error{
		Code:   code,
		Op:     op,
		Status: status,
		Body:   truncate(data),
		Err:    cause,
	}
}

func truncate(data []byte) string {
	if len(data) > maxErrBody {
		return string(data[:maxErrBody])
	}
	return string(data)
}
