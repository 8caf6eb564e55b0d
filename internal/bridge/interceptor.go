package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/almacen/internal/bridge/auth"
	"github.com/dmitrijs2005/almacen/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const clientIDKey ctxKey = "clientID"

// ClientIDFromContext returns the id carried by the caller's access token.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey).(string)
	return id, ok
}

func (s *Server) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if info.FullMethod == fullMethod(MethodPing) {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			token = values[0]
		}
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	clientID, err := auth.ParseToken(token, s.secret, s.maxTokenLifetime)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	return handler(context.WithValue(ctx, clientIDKey, clientID), req)
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	args := []any{"method", info.FullMethod, "duration", time.Since(start)}
	if err != nil {
		s.logger.Warn(ctx, "bridge call failed", append(args, "code", status.Code(err).String(), "error", err)...)
	} else {
		s.logger.Debug(ctx, "bridge call", args...)
	}
	return resp, err
}
