// Package api is the HTTP client for the campus activity API. Every response
// arrives in a {code, message, data} envelope; code 0 is success, anything
// else is an application failure regardless of the transport status.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campusline/internal/domain"
)

// Client is a minimal campus activity API client. Roster refreshes issue
// requests from multiple goroutines, so HTTPClient is set once at
// construction and never mutated afterwards.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError wraps non-2xx responses that carry no parseable envelope.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// EnvelopeError is an application-level failure: the response envelope
// carried a non-zero code. Message falls back to a generic one when the
// backend sent none.
type EnvelopeError struct {
	Code    int
	Message string
}

func (e *EnvelopeError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "请求失败"
	}
	return msg
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateActivityRequest mirrors the create payload the backend accepts; id and
// defaulted status are backend concerns.
type CreateActivityRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	SignupStart time.Time `json:"signupStart"`
	SignupEnd   time.Time `json:"signupEnd"`
	LeaderID    string    `json:"leader_id"`
	Budget      float64   `json:"budget"`
	Status      string    `json:"status,omitempty"`
	MaxPeople   int       `json:"maxPeople"`
}

// RegisterRequest registers a user; user_id is optional.
type RegisterRequest struct {
	UserID    string `json:"user_id,omitempty"`
	SchoolNum string `json:"school_num"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ClassID   string `json:"class_id"`
}

// Activities returns the activity catalog.
func (c *Client) Activities(ctx context.Context) ([]domain.Activity, error) {
	var resp []domain.Activity
	err := c.do(ctx, http.MethodGet, "activities", nil, &resp)
	return resp, err
}

// CreateActivity creates an activity.
func (c *Client) CreateActivity(ctx context.Context, req CreateActivityRequest) error {
	return c.do(ctx, http.MethodPost, "activities", req, nil)
}

// DeleteActivity deletes an activity by id.
func (c *Client) DeleteActivity(ctx context.Context, activityID int64) error {
	body := map[string]any{"activityId": activityID}
	return c.do(ctx, http.MethodDelete, "activities", body, nil)
}

// ChangeActivityStatus asks the backend to move an activity to status. The
// backend may cascade consequences to signups.
func (c *Client) ChangeActivityStatus(ctx context.Context, activityID int64, status string) error {
	body := map[string]any{"activityId": activityID, "status": status}
	return c.do(ctx, http.MethodPut, "activities/status", body, nil)
}

// Signups returns the raw signup listing. Records keep both wire spellings of
// the activity/user references; callers normalize before use.
func (c *Client) Signups(ctx context.Context) ([]domain.RawSignup, error) {
	var resp []domain.RawSignup
	err := c.do(ctx, http.MethodGet, "sign", nil, &resp)
	return resp, err
}

// SignUp creates a signup.
func (c *Client) SignUp(ctx context.Context, activityID int64, userID string) error {
	body := map[string]any{"activityId": activityID, "userId": userID}
	return c.do(ctx, http.MethodPost, "sign", body, nil)
}

// CancelSignUp cancels a signup.
func (c *Client) CancelSignUp(ctx context.Context, activityID int64, userID string) error {
	body := map[string]any{"activityId": activityID, "userId": userID}
	return c.do(ctx, http.MethodDelete, "sign", body, nil)
}

// Users returns all users.
func (c *Client) Users(ctx context.Context) ([]domain.User, error) {
	var resp []domain.User
	err := c.do(ctx, http.MethodGet, "user", nil, &resp)
	return resp, err
}

// Register registers a user.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "register", req, nil)
}

// DeleteUser deletes a user by id.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	body := map[string]any{"userId": userID}
	return c.do(ctx, http.MethodDelete, "user", body, nil)
}

// UserName resolves a user id to a display name. An unknown id surfaces as a
// request failure, not a distinguished payload.
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	body := map[string]any{"userId": userID}
	var name string
	err := c.do(ctx, http.MethodPost, "getname", body, &name)
	return name, err
}

// Classes returns the class list.
func (c *Client) Classes(ctx context.Context) ([]domain.Class, error) {
	var resp []domain.Class
	err := c.do(ctx, http.MethodGet, "class", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil || (resp.StatusCode >= 300 && env.Code == 0) {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return jsonErr
	}
	if env.Code != 0 {
		return &EnvelopeError{Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
