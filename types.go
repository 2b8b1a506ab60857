package goCtrl

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire types for the controller HTTP API. Every field uses camelCase on the
// wire; internal naming never leaks into payloads.

type tokenResponse struct {
	Value     string     `json:"value"`
	ExpiresIn int64      `json:"expiresIn,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type tokenRequest struct {
	ClientID      string `json:"clientId"`
	ClientSecret  string `json:"clientSecret"`
	EnvironmentID string `json:"environmentId"`
	ApplicationID string `json:"applicationId"`
}

type rolesResponse struct {
	Roles []string `json:"roles"`
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

// UserInfo is the controller's user payload.
type UserInfo struct {
	UserID      string   `json:"userId"`
	Identifier  string   `json:"identifier"`
	DisplayName string   `json:"displayName,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Page is the pagination envelope shared by all listing endpoints.
type Page struct {
	PageSize    int `json:"pageSize"`
	CurrentPage int `json:"currentPage"`
	TotalItems  int `json:"totalItems"`
}

// RoleInfo describes one role definition known to the controller.
type RoleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RolePage is one page of the role listing.
type RolePage struct {
	Page
	Items []RoleInfo `json:"items"`
}

func decodeJSON(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode controller response: %w", err)
	}
	return nil
}
