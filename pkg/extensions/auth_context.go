// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

package extensions

import "context"

// authInfoContextKey is the private context key type for storing AuthInfo.
// A dedicated unexported type prevents collisions with keys from other packages.
type authInfoContextKey struct{}

// ContextWithAuthInfo returns a copy of ctx carrying the given AuthInfo.
//
// Example:
//
//	ctx := ContextWithAuthInfo(ctx, authInfo)
func ContextWithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoContextKey{}, info)
}

// AuthInfoFromContext retrieves the AuthInfo stored by ContextWithAuthInfo.
//
// The second return value reports whether an AuthInfo was present.
func AuthInfoFromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoContextKey{}).(*AuthInfo)
	return info, ok
}
