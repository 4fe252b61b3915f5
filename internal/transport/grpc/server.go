package grpcx

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cwrk-planet/live-quiz/internal/registry"
	"github.com/cwrk-planet/live-quiz/internal/session"
)

// ServiceName — операторский сервис; сообщения — well-known типы protobuf,
// поэтому сгенерированные стабы не нужны.
const ServiceName = "quiz.live.v1.LiveSessionAdmin"

type Registry interface {
	Get(id string) (*session.Session, error)
	Page(limit int, cursor string) ([]registry.Info, string, error)
	Remove(ctx context.Context, id string) bool
}

type AdminServer interface {
	GetSession(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	ListSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CloseSession(ctx context.Context, id *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

type Server struct {
	reg Registry
}

func NewServer(reg Registry) *Server {
	return &Server{reg: reg}
}

// Register вешает админский сервис и health-check; возвращает health-сервер,
// чтобы main мог переключить статус при остановке.
func Register(grpcServer *grpc.Server, s *Server) *health.Server {
	grpcServer.RegisterService(&adminServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)
	return hs
}

// GetSession возвращает снимок сессии.
func (s *Server) GetSession(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error) {
	sess, err := s.reg.Get(id.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return toStruct(snap)
}

// ListSessions: {limit, cursor} -> {items, nextCursor}
func (s *Server) ListSessions(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	limit := int(fields["limit"].GetNumberValue())
	cursor := fields["cursor"].GetStringValue()

	items, next, err := s.reg.Page(limit, cursor)
	if err != nil {
		return nil, mapErr(err)
	}
	return toStruct(map[string]any{"items": items, "nextCursor": next})
}

// CloseSession завершает сессию (closed_by_operator) и снимает её с учёта.
func (s *Server) CloseSession(ctx context.Context, id *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.reg.Remove(ctx, id.GetValue())), nil
}

// toStruct проводит значение через JSON, чтобы сохранить json-теги доменных типов.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, mapErr(fmt.Errorf("marshal: %w", err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, mapErr(fmt.Errorf("unmarshal: %w", err))
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, mapErr(fmt.Errorf("struct: %w", err))
	}
	return st, nil
}
