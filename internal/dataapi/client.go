// Package dataapi is a typed client for the LeadOps REST API.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/niveshya/leadops/internal/meetings"
	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/shared"
)

// TokenProvider supplies the bearer token for each request.
type TokenProvider interface {
	Token() string
}

// Client calls the Data API.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenProvider
}

var _ meetings.Uploader = (*Client)(nil)

// New constructs a Client. A nil httpClient selects a client with a 30s timeout.
func New(baseURL string, httpClient *http.Client, tokens TokenProvider) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("dataapi: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("dataapi: base url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: u, http: httpClient, tokens: tokens}, nil
}

// TokenResponse is returned by Login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp TokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp, false); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/logout", nil, "")
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.send(req, nil)
}

// Me returns the principal the server associates with the current token.
func (c *Client) Me(ctx context.Context) (shared.Principal, error) {
	var p shared.Principal
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &p, true)
	return p, err
}

// ListPermissions returns the permission catalog.
func (c *Client) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	err := c.do(ctx, http.MethodGet, "/rbac/permissions", nil, &perms, true)
	return perms, err
}

// ListRoles returns all roles.
func (c *Client) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	var roles []rbac.Role
	err := c.do(ctx, http.MethodGet, "/rbac/roles", nil, &roles, true)
	return roles, err
}

// GetRole fetches one role.
func (c *Client) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	var role rbac.Role
	err := c.do(ctx, http.MethodGet, "/rbac/roles/"+url.PathEscape(id), nil, &role, true)
	return role, err
}

// CreateRole creates a role.
func (c *Client) CreateRole(ctx context.Context, req rbac.CreateRoleRequest) (rbac.Role, error) {
	var role rbac.Role
	err := c.do(ctx, http.MethodPost, "/rbac/roles", req, &role, true)
	return role, err
}

// UpdateRole applies a partial update.
func (c *Client) UpdateRole(ctx context.Context, id string, req rbac.UpdateRoleRequest) (rbac.Role, error) {
	var role rbac.Role
	err := c.do(ctx, http.MethodPatch, "/rbac/roles/"+url.PathEscape(id), req, &role, true)
	return role, err
}

// DeleteRole deletes a role.
func (c *Client) DeleteRole(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/rbac/roles/"+url.PathEscape(id), nil, nil, true)
}

// AssignRole grants a role to a user.
func (c *Client) AssignRole(ctx context.Context, userID, roleID string) (rbac.RoleAssignment, error) {
	var a rbac.RoleAssignment
	err := c.do(ctx, http.MethodPost, "/rbac/assignments", rbac.AssignRoleRequest{UserID: userID, RoleID: roleID}, &a, true)
	return a, err
}

// UnassignRole revokes a role from a user.
func (c *Client) UnassignRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, http.MethodDelete, "/rbac/assignments", rbac.AssignRoleRequest{UserID: userID, RoleID: roleID}, nil, true)
}

// GetUserRoles lists the roles assigned to a user.
func (c *Client) GetUserRoles(ctx context.Context, userID string) (rbac.UserRolesResponse, error) {
	var resp rbac.UserRolesResponse
	err := c.do(ctx, http.MethodGet, "/rbac/users/"+url.PathEscape(userID)+"/roles", nil, &resp, true)
	return resp, err
}

// UploadMeetingAudio posts a recording as the meeting's audio_file.
func (c *Client) UploadMeetingAudio(ctx context.Context, meetingID, filename, mimeType string, data io.Reader) (meetings.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename=%q`, meetings.AudioFormField, filename))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return meetings.UploadResult{}, err
	}
	if _, err := io.Copy(part, data); err != nil {
		return meetings.UploadResult{}, fmt.Errorf("dataapi: buffer upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return meetings.UploadResult{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/meetings/"+url.PathEscape(meetingID)+"/audio", &buf, mw.FormDataContentType())
	if err != nil {
		return meetings.UploadResult{}, err
	}
	c.authorize(req)
	var result meetings.UploadResult
	if err := c.send(req, &result); err != nil {
		return meetings.UploadResult{}, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("dataapi: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	if auth {
		c.authorize(req)
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("dataapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) send(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dataapi: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeError(res)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("dataapi: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
