// Package upstream is the HTTP client for the school-management backend that
// owns the role/permission catalog and user accounts.
package upstream

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

	"github.com/go-playground/validator/v10"
)

// Client talks to the backend REST API.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	validate *validator.Validate
}

// NewClient constructs a Client. The token, when set, is sent as a bearer
// credential on every request.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		token:    token,
		http:     &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

// Role mirrors the backend role record.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name" validate:"required"`
	GuardName   string       `json:"guard_name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// Permission mirrors the backend permission record.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required"`
	GuardName   string `json:"guard_name"`
	Description string `json:"description"`
}

// UserPermissions is the backend's per-user permission report.
type UserPermissions struct {
	Roles          []Role       `json:"roles"`
	Permissions    []Permission `json:"permissions"`
	AllPermissions []Permission `json:"all_permissions"`
}

// Roles fetches all roles with their embedded permissions.
func (c *Client) Roles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := c.get(ctx, "/roles", &roles); err != nil {
		return nil, err
	}
	for i := range roles {
		if err := c.validate.Struct(&roles[i]); err != nil {
			return nil, fmt.Errorf("upstream: malformed role record: %w", err)
		}
	}
	return roles, nil
}

// Permissions fetches the full permission list.
func (c *Client) Permissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := c.get(ctx, "/permissions", &perms); err != nil {
		return nil, err
	}
	for i := range perms {
		if err := c.validate.Struct(&perms[i]); err != nil {
			return nil, fmt.Errorf("upstream: malformed permission record: %w", err)
		}
	}
	return perms, nil
}

// UserPermissions fetches the backend's view of a user's permissions. It is
// a cross-check input, never the primary decision path.
func (c *Client) UserPermissions(ctx context.Context, userID int64) (UserPermissions, error) {
	var report UserPermissions
	query := url.Values{"user_id": {strconv.FormatInt(userID, 10)}}
	if err := c.get(ctx, "/user-permissions?"+query.Encode(), &report); err != nil {
		return UserPermissions{}, err
	}
	return report, nil
}

// CheckPermission asks the backend to re-evaluate a single permission.
func (c *Client) CheckPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	body := map[string]any{"user_id": userID, "permission": permission}
	var result struct {
		HasPermission bool `json:"has_permission"`
	}
	if err := c.do(ctx, http.MethodPost, "/check-permission", body, &result); err != nil {
		return false, err
	}
	return result.HasPermission, nil
}

// CreateRole creates a role on the backend.
func (c *Client) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	body := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, http.MethodPost, "/roles", body, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates a role's name and description.
func (c *Client) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	var role Role
	body := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, http.MethodPut, "/roles/"+strconv.FormatInt(id, 10), body, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role.
func (c *Client) DeleteRole(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/roles/"+strconv.FormatInt(id, 10), nil, nil)
}

// SetRolePermissions replaces the permission list attached to a role.
func (c *Client) SetRolePermissions(ctx context.Context, id int64, permissionIDs []int64) error {
	body := map[string]any{"permission_ids": permissionIDs}
	return c.do(ctx, http.MethodPut, "/roles/"+strconv.FormatInt(id, 10)+"/permissions", body, nil)
}

// PushOverride propagates an override mutation to the backend.
func (c *Client) PushOverride(ctx context.Context, userID int64, permission, op string) error {
	body := map[string]any{"user_id": userID, "permission": permission, "op": op}
	return c.do(ctx, http.MethodPost, "/user-overrides", body, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("upstream: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: %s %s: %w", method, path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("upstream: %s %s: unexpected status %d", method, path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("upstream: decode response: %w", err)
	}
	return nil
}
