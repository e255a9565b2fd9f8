package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrCommunityMismatch is returned when a call names a community other
// than the one its bearer token is bound to.
var ErrCommunityMismatch = errors.New("community not permitted for this token")

type contextKey int

const communityKey contextKey = iota

type communityScope struct {
	id    string
	bound bool
}

// CommunityResolver resolves a community ID from a bearer token.
type CommunityResolver interface {
	ResolveCommunity(ctx context.Context, token string) (string, error)
}

// getCommunityID picks the community a tool call acts on. Calls bound
// by a token may only name that token's community.
func getCommunityID(ctx context.Context, requested string) (string, error) {
	scope, _ := ctx.Value(communityKey).(communityScope)
	requested = strings.TrimSpace(requested)
	switch {
	case requested == "":
		if scope.id == "" {
			return "", fmt.Errorf("%w: community_id is required", errInvalidArgument)
		}
		return scope.id, nil
	case scope.bound && requested != scope.id:
		return "", ErrCommunityMismatch
	default:
		return requested, nil
	}
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver CommunityResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			communityID, err := resolver.ResolveCommunity(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if communityID == "" {
				return nil, fmt.Errorf("unauthorized: invalid bearer token")
			}

			ctx = context.WithValue(ctx, communityKey, communityScope{id: communityID, bound: true})
			return next(ctx, method, req)
		}
	}
}

// noAuthMiddleware injects a default community when auth is disabled.
func noAuthMiddleware(defaultCommunity string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = context.WithValue(ctx, communityKey, communityScope{id: defaultCommunity})
			return next(ctx, method, req)
		}
	}
}
