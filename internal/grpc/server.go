// Package grpc содержит реализацию gRPC сервера для сервиса коротких ссылок
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/tempizhere/goslug/internal/clicks"
	"github.com/tempizhere/goslug/internal/grpc/proto"
	"github.com/tempizhere/goslug/internal/repository"
	"github.com/tempizhere/goslug/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Server реализует gRPC сервер для сервиса коротких ссылок
type Server struct {
	proto.UnimplementedSlugServiceServer
	svc      *service.Service
	recorder *clicks.Recorder
	db       repository.Database
	logger   *zap.Logger
}

// NewServer создаёт новый gRPC сервер
func NewServer(svc *service.Service, recorder *clicks.Recorder, db repository.Database, logger *zap.Logger) *Server {
	return &Server{
		svc:      svc,
		recorder: recorder,
		db:       db,
		logger:   logger,
	}
}

// ShortenURL обрабатывает сокращение URL
func (s *Server) ShortenURL(ctx context.Context, req *proto.ShortenURLRequest) (*proto.ShortenURLResponse, error) {
	if req.URL == "" {
		return nil, status.Error(codes.InvalidArgument, "URL is required")
	}

	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	link, err := s.svc.Shorten(req.URL, userID)
	if err != nil {
		return nil, s.mapShortenError(err)
	}

	return &proto.ShortenURLResponse{
		Result: s.svc.ShortURL(link.Slug),
		Slug:   link.Slug,
	}, nil
}

// ResolveURL обрабатывает разрешение слага в исходный URL.
// Успешное разрешение ставит переход в очередь записи, как и
// HTTP-редирект
func (s *Server) ResolveURL(ctx context.Context, req *proto.ResolveURLRequest) (*proto.ResolveURLResponse, error) {
	if req.Slug == "" {
		return nil, status.Error(codes.InvalidArgument, "slug is required")
	}

	link, found := s.svc.Resolve(req.Slug)
	if !found {
		return &proto.ResolveURLResponse{Found: false}, nil
	}

	s.recorder.Enqueue(link.ID, peerIP(ctx), time.Now())

	return &proto.ResolveURLResponse{
		OriginalURL: link.OriginalURL,
		Found:       true,
	}, nil
}

// GetUserLinks возвращает страницу ссылок пользователя
func (s *Server) GetUserLinks(ctx context.Context, req *proto.GetUserLinksRequest) (*proto.GetUserLinksResponse, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	links, err := s.svc.ListLinks(userID, int(req.Page))
	if err != nil {
		s.logger.Error("Failed to list user links", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to get user links")
	}

	protoLinks := make([]*proto.UserLink, len(links))
	for i, l := range links {
		protoLinks[i] = &proto.UserLink{
			Slug:        l.Slug,
			ShortURL:    s.svc.ShortURL(l.Slug),
			OriginalURL: l.OriginalURL,
			CreatedAt:   l.CreatedAt.Format(time.RFC3339),
		}
	}

	return &proto.GetUserLinksResponse{Links: protoLinks}, nil
}

// GetLinkStats возвращает страницу истории переходов по ссылке
func (s *Server) GetLinkStats(ctx context.Context, req *proto.GetLinkStatsRequest) (*proto.GetLinkStatsResponse, error) {
	if req.Slug == "" {
		return nil, status.Error(codes.InvalidArgument, "slug is required")
	}

	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	link, linkClicks, err := s.svc.LinkStats(userID, req.Slug, int(req.Page))
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return nil, status.Error(codes.NotFound, "link not found")
		}
		s.logger.Error("Failed to get link stats", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to get link stats")
	}

	protoClicks := make([]*proto.LinkClick, len(linkClicks))
	for i, c := range linkClicks {
		protoClicks[i] = &proto.LinkClick{
			IP:        c.IP,
			ClickedAt: c.ClickedAt.Format(time.RFC3339),
		}
	}

	return &proto.GetLinkStatsResponse{
		Slug:        link.Slug,
		OriginalURL: link.OriginalURL,
		Clicks:      protoClicks,
	}, nil
}

// DeleteLink удаляет ссылку пользователя
func (s *Server) DeleteLink(ctx context.Context, req *proto.DeleteLinkRequest) (*proto.DeleteLinkResponse, error) {
	if req.Slug == "" {
		return nil, status.Error(codes.InvalidArgument, "slug is required")
	}

	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.svc.DeleteLink(userID, req.Slug); err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return nil, status.Error(codes.NotFound, "link not found")
		}
		s.logger.Error("Failed to delete link", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to delete link")
	}

	return &proto.DeleteLinkResponse{Success: true}, nil
}

// Ping проверяет состояние сервиса
func (s *Server) Ping(ctx context.Context, req *proto.PingRequest) (*proto.PingResponse, error) {
	if s.db == nil {
		return &proto.PingResponse{DatabaseAvailable: false}, nil
	}

	err := s.db.Ping()
	return &proto.PingResponse{
		DatabaseAvailable: err == nil,
	}, nil
}

// GetServiceStats возвращает статистику сервиса
func (s *Server) GetServiceStats(ctx context.Context, req *proto.GetServiceStatsRequest) (*proto.GetServiceStatsResponse, error) {
	stats, err := s.svc.Stats()
	if err != nil {
		s.logger.Error("Failed to get stats", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to get statistics")
	}

	return &proto.GetServiceStatsResponse{
		LinksCount:    stats.LinksCount,
		ClicksCount:   stats.ClicksCount,
		DroppedClicks: s.recorder.Dropped(),
	}, nil
}

// mapShortenError переводит ошибки сокращения в коды gRPC
func (s *Server) mapShortenError(err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyURL),
		errors.Is(err, service.ErrURLTooLong),
		errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrOwnHostURL):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrSlugExhausted):
		return status.Error(codes.ResourceExhausted, "could not allocate a short link, please try again")
	default:
		s.logger.Error("Failed to shorten URL", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

// getUserIDFromContext извлекает UserID из контекста
func getUserIDFromContext(ctx context.Context) (string, error) {
	if userID, ok := ctx.Value(userIDKey).(string); ok && userID != "" {
		return userID, nil
	}
	return "", status.Error(codes.Unauthenticated, "user ID not found in context")
}

// peerIP возвращает IP вызывающей стороны без порта
func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return ""
	}
	if tcpAddr, ok := p.Addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}
	if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
		return host
	}
	return p.Addr.String()
}
