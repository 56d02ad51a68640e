// Package grpc содержит интерцепторы для gRPC сервера
package grpc

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/tempizhere/goslug/internal/ratelimit"
	"github.com/tempizhere/goslug/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// contextKey определяет тип для ключей контекста
type contextKey string

const userIDKey contextKey = "userID"

const (
	resolveMethod = "/slug.v1.SlugService/ResolveURL"
	pingMethod    = "/slug.v1.SlugService/Ping"
	statsMethod   = "/slug.v1.SlugService/GetServiceStats"
)

// AuthInterceptor создаёт интерцептор для аутентификации пользователей.
// Публичные методы пропускаются без идентичности, остальным при
// отсутствии валидного токена выдаётся новая
func AuthInterceptor(svc *service.Service, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		publicMethods := map[string]bool{
			resolveMethod: true,
			pingMethod:    true,
			statsMethod:   true,
		}

		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		var userID string
		var err error

		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if authHeaders := md.Get("authorization"); len(authHeaders) > 0 {
				authHeader := authHeaders[0]
				if strings.HasPrefix(authHeader, "Bearer ") {
					token := strings.TrimPrefix(authHeader, "Bearer ")
					userID, err = svc.ParseJWT(token)
					if err != nil {
						logger.Warn("Invalid JWT token", zap.Error(err))
						userID = ""
					}
				}
			}
		}

		if userID == "" {
			userID, err = svc.GenerateUserID()
			if err != nil {
				logger.Error("Failed to generate user ID", zap.Error(err))
				return nil, status.Error(codes.Internal, "failed to generate user ID")
			}

			token, err := svc.GenerateJWT(userID)
			if err != nil {
				logger.Error("Failed to generate JWT", zap.Error(err))
				return nil, status.Error(codes.Internal, "failed to generate JWT")
			}

			outgoingMD := metadata.New(map[string]string{
				"authorization": "Bearer " + token,
			})
			if err := grpc.SetHeader(ctx, outgoingMD); err != nil {
				logger.Error("Failed to set response header", zap.Error(err))
			}

			logger.Info("Generated new JWT for gRPC", zap.String("user_id", userID))
		}

		ctx = context.WithValue(ctx, userIDKey, userID)
		return handler(ctx, req)
	}
}

// RateLimitInterceptor создаёт интерцептор для ограничения частоты запросов.
// Разрешение слагов лимитируется по IP вызывающей стороны, сокращение
// по идентификатору пользователя
func RateLimitInterceptor(limiter *ratelimit.Limiter, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		var key, class string
		switch info.FullMethod {
		case resolveMethod:
			key, class = peerIP(ctx), ratelimit.ClassRedirect
		case "/slug.v1.SlugService/ShortenURL":
			class = ratelimit.ClassShorten
			if userID, ok := ctx.Value(userIDKey).(string); ok && userID != "" {
				key = userID
			} else {
				key = peerIP(ctx)
			}
		default:
			return handler(ctx, req)
		}

		if !limiter.Allow(key, class) {
			logger.Warn("gRPC rate limit exceeded",
				zap.String("method", info.FullMethod),
				zap.String("key", key),
			)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(ctx, req)
	}
}

// TrustedSubnetInterceptor создаёт интерцептор для проверки доверенной подсети
func TrustedSubnetInterceptor(trustedSubnet string, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if info.FullMethod != statsMethod {
			return handler(ctx, req)
		}

		if trustedSubnet == "" {
			return nil, status.Error(codes.PermissionDenied, "trusted subnet not configured")
		}

		_, subnet, err := net.ParseCIDR(trustedSubnet)
		if err != nil {
			logger.Error("Invalid trusted subnet", zap.String("subnet", trustedSubnet), zap.Error(err))
			return nil, status.Error(codes.Internal, "invalid trusted subnet configuration")
		}

		clientIP := net.ParseIP(peerIP(ctx))
		if clientIP == nil || !subnet.Contains(clientIP) {
			logger.Warn("Access denied from untrusted IP", zap.String("ip", peerIP(ctx)))
			return nil, status.Error(codes.PermissionDenied, "access denied")
		}

		return handler(ctx, req)
	}
}

// LoggingInterceptor создаёт интерцептор для логирования gRPC запросов
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		var clientIP string
		if p, ok := peer.FromContext(ctx); ok {
			clientIP = p.Addr.String()
		}

		code := codes.OK
		if err != nil {
			if st, ok := status.FromError(err); ok {
				code = st.Code()
			}
		}

		logger.Info("gRPC request",
			zap.String("method", info.FullMethod),
			zap.String("client_ip", clientIP),
			zap.String("status_code", code.String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		return resp, err
	}
}
