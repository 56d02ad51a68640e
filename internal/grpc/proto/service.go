// Package proto содержит интерфейс gRPC сервиса коротких ссылок
package proto

import (
	"context"

	"google.golang.org/grpc"
)

// SlugServiceServer представляет интерфейс gRPC сервиса
type SlugServiceServer interface {
	ShortenURL(ctx context.Context, req *ShortenURLRequest) (*ShortenURLResponse, error)
	ResolveURL(ctx context.Context, req *ResolveURLRequest) (*ResolveURLResponse, error)
	GetUserLinks(ctx context.Context, req *GetUserLinksRequest) (*GetUserLinksResponse, error)
	GetLinkStats(ctx context.Context, req *GetLinkStatsRequest) (*GetLinkStatsResponse, error)
	DeleteLink(ctx context.Context, req *DeleteLinkRequest) (*DeleteLinkResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
	GetServiceStats(ctx context.Context, req *GetServiceStatsRequest) (*GetServiceStatsResponse, error)
}

// UnimplementedSlugServiceServer предоставляет базовую реализацию интерфейса
type UnimplementedSlugServiceServer struct{}

// ShortenURL предоставляет базовую реализацию сокращения URL
func (UnimplementedSlugServiceServer) ShortenURL(ctx context.Context, req *ShortenURLRequest) (*ShortenURLResponse, error) {
	return nil, nil
}

// ResolveURL предоставляет базовую реализацию разрешения слага
func (UnimplementedSlugServiceServer) ResolveURL(ctx context.Context, req *ResolveURLRequest) (*ResolveURLResponse, error) {
	return nil, nil
}

// GetUserLinks предоставляет базовую реализацию получения ссылок пользователя
func (UnimplementedSlugServiceServer) GetUserLinks(ctx context.Context, req *GetUserLinksRequest) (*GetUserLinksResponse, error) {
	return nil, nil
}

// GetLinkStats предоставляет базовую реализацию получения истории переходов
func (UnimplementedSlugServiceServer) GetLinkStats(ctx context.Context, req *GetLinkStatsRequest) (*GetLinkStatsResponse, error) {
	return nil, nil
}

// DeleteLink предоставляет базовую реализацию удаления ссылки
func (UnimplementedSlugServiceServer) DeleteLink(ctx context.Context, req *DeleteLinkRequest) (*DeleteLinkResponse, error) {
	return nil, nil
}

// Ping предоставляет базовую реализацию проверки состояния сервиса
func (UnimplementedSlugServiceServer) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	return nil, nil
}

// GetServiceStats предоставляет базовую реализацию получения статистики сервиса
func (UnimplementedSlugServiceServer) GetServiceStats(ctx context.Context, req *GetServiceStatsRequest) (*GetServiceStatsResponse, error) {
	return nil, nil
}

// RegisterSlugServiceServer регистрирует реализацию сервиса в gRPC сервере
func RegisterSlugServiceServer(s *grpc.Server, srv SlugServiceServer) {
	// В реальном проекте это было бы автоматически сгенерировано protoc
	// Здесь заглушка для демонстрации
}
