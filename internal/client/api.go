// Package client implements the command-line client of the Guard Pine API:
// an HTTP wrapper over the account, reminder and permission endpoints, a
// session file holding the bearer token, and the interactive shell.
package client

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

	"github.com/atinyakov/GuardPine/internal/models"
)

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

// API talks to a Guard Pine server.
type API struct {
	base  *url.URL
	http  *http.Client
	token string
}

// NewAPI returns an API client for baseURL. token is the stored bearer value
// ("Bearer ...") and may be empty.
func NewAPI(baseURL string, httpClient *http.Client, token string) (*API, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{base: base, http: httpClient, token: token}, nil
}

// Token returns the bearer value in use.
func (a *API) Token() string { return a.token }

// Register creates an account.
func (a *API) Register(ctx context.Context, id, password string) error {
	body := map[string]string{"id": id, "pwd": password}
	return a.do(ctx, http.MethodPut, "/user", nil, body, nil)
}

// Login exchanges credentials for a bearer token and keeps it for later calls.
func (a *API) Login(ctx context.Context, id, password string) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	body := map[string]string{"id": id, "pwd": password}
	if err := a.do(ctx, http.MethodPost, "/user", nil, body, &res); err != nil {
		return "", err
	}
	if res.Token == "" {
		return "", fmt.Errorf("login answer carries no token")
	}
	a.token = res.Token
	return res.Token, nil
}

// Reminders lists the reminders of owner, or of the logged-in user when owner is empty.
func (a *API) Reminders(ctx context.Context, owner string) ([]models.Reminder, error) {
	q := url.Values{}
	if owner != "" {
		q.Set("user_id", owner)
	}
	var out []models.Reminder
	err := a.do(ctx, http.MethodGet, "/reminder", q, nil, &out)
	return out, err
}

// Remind creates a reminder for owner. A nil at leaves the reminder without
// a notification time.
func (a *API) Remind(ctx context.Context, owner, content string, at *time.Time) (*models.Reminder, error) {
	body := struct {
		UserID           string     `json:"user_id,omitempty"`
		Content          string     `json:"content"`
		NotificationTime *time.Time `json:"notification_time,omitempty"`
	}{owner, content, at}
	var out models.Reminder
	if err := a.do(ctx, http.MethodPut, "/reminder", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Forget deletes a reminder.
func (a *API) Forget(ctx context.Context, id int64) error {
	q := url.Values{"id": {strconv.FormatInt(id, 10)}}
	return a.do(ctx, http.MethodDelete, "/reminder", q, nil, nil)
}

// Grant lets user act on behalf of the logged-in user.
func (a *API) Grant(ctx context.Context, user string) (string, error) {
	return a.text(ctx, http.MethodPut, "/permission", url.Values{"from_user_id": {user}})
}

// Revoke withdraws a grant.
func (a *API) Revoke(ctx context.Context, user string) (string, error) {
	return a.text(ctx, http.MethodDelete, "/permission", url.Values{"from_user_id": {user}})
}

// Permissions returns the logged-in user followed by everyone allowed to act as them.
func (a *API) Permissions(ctx context.Context) ([]string, error) {
	var out []string
	err := a.do(ctx, http.MethodGet, "/permission", nil, nil, &out)
	return out, err
}

func (a *API) text(ctx context.Context, method, path string, q url.Values) (string, error) {
	var buf bytes.Buffer
	if err := a.do(ctx, method, path, q, nil, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// do sends a request with an optional JSON body. out may be nil, a
// *bytes.Buffer receiving the raw body, or a JSON target.
func (a *API) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := a.base.JoinPath(path)
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	switch target := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *bytes.Buffer:
		_, err = io.Copy(target, resp.Body)
		return err
	default:
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return nil
	}
}
