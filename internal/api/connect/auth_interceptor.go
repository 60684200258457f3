package connect

import (
	"context"

	"connectrpc.com/connect"
)

const (
	// APITokenHeader is the header name for the API token.
	APITokenHeader = "X-Api-Token"
)

// TokenInterceptor authenticates calls with a shared API token.
// On handlers it rejects requests without the token; on clients it attaches it.
// An empty token disables it on both sides.
type TokenInterceptor struct {
	token string
}

// NewTokenInterceptor creates a TokenInterceptor.
func NewTokenInterceptor(token string) *TokenInterceptor {
	return &TokenInterceptor{token: token}
}

var _ connect.Interceptor = (*TokenInterceptor)(nil)

// WrapUnary implements connect.Interceptor.
func (i *TokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if i.token == "" {
			return next(ctx, req)
		}
		if req.Spec().IsClient {
			req.Header().Set(APITokenHeader, i.token)
			return next(ctx, req)
		}
		if req.Header().Get(APITokenHeader) != i.token {
			return nil, connect.NewError(connect.CodeUnauthenticated, nil)
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *TokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if i.token != "" {
			conn.RequestHeader().Set(APITokenHeader, i.token)
		}
		return conn
	}
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *TokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if i.token != "" && conn.RequestHeader().Get(APITokenHeader) != i.token {
			return connect.NewError(connect.CodeUnauthenticated, nil)
		}
		return next(ctx, conn)
	}
}
