// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when authentication or authorization fails.
// Hardened implementations should wrap this error with additional context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful authentication.
//
// This struct is designed to be extensible via the Metadata field, allowing
// deployment-specific implementations to include additional claims without
// modifying the core type.
//
// Required fields (always populated):
//   - UserID: Unique identifier for the user
//
// Optional fields (may be empty):
//   - Email: User's email address
//   - Roles: List of roles/groups the user belongs to
//   - Metadata: Arbitrary key-value pairs for deployment extensions
//
// Example:
//
//	info := &AuthInfo{
//	    UserID: "officer-4521",
//	    Email:  "io@station.example.in",
//	    Roles:  []string{"investigating_officer", "viewer"},
//	    Metadata: NewMetadata().
//	        Set("station_code", "PS-KND-03").
//	        Set("mfa_verified", true),
//	}
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the user's email address.
	// May be empty if not provided by the auth provider.
	Email string

	// Roles contains the user's role memberships for authorization decisions.
	// Common roles: "admin", "investigating_officer", "prosecutor", "viewer"
	Roles []string

	// Metadata holds additional claims from the identity provider.
	// Deployments can store provider-specific data here without requiring
	// changes to the core struct.
	//
	// Common metadata keys:
	//   - "station_code": reporting police station identifier
	//   - "district": administrative district
	//   - "mfa_verified": whether MFA was used
	//   - "session_id": identity provider session ID
	//
	// Use NewMetadata() and type-safe accessors:
	//
	//   Metadata: NewMetadata().
	//       Set("station_code", "PS-KND-03").
	//       Set("mfa_verified", true),
	Metadata Metadata
}

// HasRole checks if the user has a specific role.
//
// This is a convenience method for authorization checks:
//
//	if !authInfo.HasRole("investigating_officer") {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuthProvider always returns a valid "local-user" with admin
// privileges. This allows a single-station deployment to function without
// any authentication infrastructure.
//
// # Hardened Implementation
//
// Department deployments implement this interface to validate tokens against
// their identity provider (CCTNS SSO, departmental LDAP, Azure AD).
//
// Example:
//
//	type DeptAuthProvider struct {
//	    client *sso.Client
//	}
//
//	func (p *DeptAuthProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
//	    claims, err := p.client.VerifyToken(ctx, token)
//	    if err != nil {
//	        return nil, fmt.Errorf("sso validation failed: %w", ErrUnauthorized)
//	    }
//	    return &AuthInfo{
//	        UserID: claims.Subject,
//	        Email:  claims.Email,
//	        Roles:  claims.Groups,
//	    }, nil
//	}
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's identity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - token: The authentication token (JWT, session ID, API key, etc.)
	//
	// Returns:
	//   - *AuthInfo: User identity information if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid, other errors for failures
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization check request.
//
// This struct follows the common pattern of (subject, action, resource)
// for access control decisions.
//
// Example:
//
//	req := AuthzRequest{
//	    User:         authInfo,
//	    Action:       "read",
//	    ResourceType: "workflow",
//	    ResourceID:   "f3a1c2d4-...",
//	}
//	err := authzProvider.Authorize(ctx, req)
type AuthzRequest struct {
	// User is the authenticated user making the request.
	// This comes from AuthProvider.Validate().
	User *AuthInfo

	// Action is the operation being attempted.
	// Common actions: "create", "read", "extend", "download", "ingest"
	Action string

	// ResourceType is the category of resource being accessed.
	// Examples: "workflow", "document", "corpus", "policy"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	// If empty, the check is for the resource type in general.
	// For workflows this is the workflow ID returned by upload.
	ResourceID string
}

// AuthzProvider checks if a user is authorized to perform an action.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuthzProvider always allows all actions. This is appropriate
// for single-user local deployments where access control isn't needed.
//
// # Hardened Implementation
//
// Department deployments implement RBAC so that, for example, only the
// investigating officer assigned to a case may download its report.
//
//	type RBACProvider struct {
//	    policies *PolicyEngine
//	}
//
//	func (p *RBACProvider) Authorize(ctx context.Context, req AuthzRequest) error {
//	    allowed := p.policies.Check(req.User.Roles, req.Action, req.ResourceType)
//	    if !allowed {
//	        return fmt.Errorf("user %s cannot %s %s: %w",
//	            req.User.UserID, req.Action, req.ResourceType, ErrUnauthorized)
//	    }
//	    return nil
//	}
type AuthzProvider interface {
	// Authorize checks if the user is permitted to perform the action.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - req: The authorization request describing user, action, and resource
	//
	// Returns:
	//   - nil: Action is authorized
	//   - error: ErrUnauthorized (or wrapped) if denied
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider is the default authentication provider for open source.
//
// It always returns a valid local user with admin privileges, enabling
// the service to function without any authentication infrastructure.
//
// Thread-safe: This implementation has no mutable state.
//
// Example:
//
//	provider := &NopAuthProvider{}
//	info, err := provider.Validate(ctx, "any-token")
//	// info.UserID == "local-user"
//	// info.Roles == []string{"admin"}
//	// err == nil
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
//
// The token parameter is ignored - any value (including empty string)
// results in successful authentication. This is intentional for local
// single-user deployments.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Email:  "",
		Roles:  []string{"admin"},
	}, nil
}

// NopAuthzProvider is the default authorization provider for open source.
//
// It always allows all actions, enabling the service to function without
// any access control infrastructure.
//
// Thread-safe: This implementation has no mutable state.
//
// Example:
//
//	provider := &NopAuthzProvider{}
//	err := provider.Authorize(ctx, AuthzRequest{
//	    User:         &AuthInfo{UserID: "anyone"},
//	    Action:       "download",
//	    ResourceType: "document",
//	})
//	// err == nil (always allowed)
type NopAuthzProvider struct{}

// Authorize always returns nil, allowing all actions.
//
// The request parameter is ignored - all actions are permitted.
// This is intentional for local single-user deployments where
// access control isn't needed.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
