package gameserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "knight.v1.GameService"

// TokenHeader is the metadata key carrying the session token.
const TokenHeader = "x-session-token"

// GameServiceServer exposes Service over gRPC with the JSON codec.
type GameServiceServer struct {
	svc    *Service
	logger *zap.Logger
}

type gameService interface {
	service() *Service
}

func (g *GameServiceServer) service() *Service { return g.svc }

// NewGameServiceServer creates the gRPC adapter.
//
// Precondition: svc and logger must be non-nil.
func NewGameServiceServer(svc *Service, logger *zap.Logger) *GameServiceServer {
	return &GameServiceServer{svc: svc, logger: logger}
}

// NewGRPCServer builds a grpc.Server carrying the game service and the
// standard health service, with request logging.
//
// Postcondition: The health status of ServiceName is SERVING.
func NewGRPCServer(g *GameServiceServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(g.logUnary),
		grpc.ChainStreamInterceptor(g.logStream),
	)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&gameServiceDesc, g)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

func (g *GameServiceServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	g.logger.Debug("rpc",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, err
}

func (g *GameServiceServer) logStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	g.logger.Debug("stream closed",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return err
}

// session resolves the caller from the token header.
func (g *GameServiceServer) session(ctx context.Context) (*session.Session, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	tokens := md.Get(TokenHeader)
	if len(tokens) == 0 {
		return nil, ErrUnauthenticated
	}
	return g.svc.Authorize(tokens[0])
}

// public adapts an unauthenticated call.
func public[Req, Resp any](fn func(s *Service, ctx context.Context, req Req) (Resp, error)) func(*GameServiceServer, context.Context, *Req) (*Resp, error) {
	return func(g *GameServiceServer, ctx context.Context, req *Req) (*Resp, error) {
		resp, err := fn(g.svc, ctx, *req)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	}
}

// authed adapts a call that needs a session.
func authed[Req, Resp any](fn func(s *Service, ctx context.Context, sess *session.Session, req Req) (Resp, error)) func(*GameServiceServer, context.Context, *Req) (*Resp, error) {
	return func(g *GameServiceServer, ctx context.Context, req *Req) (*Resp, error) {
		sess, err := g.session(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := fn(g.svc, ctx, sess, *req)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	}
}

// unary builds the MethodDesc for one call.
func unary[Req, Resp any](name string, h func(*GameServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			g := srv.(*GameServiceServer)
			call := func(ctx context.Context, r any) (any, error) {
				resp, err := h(g, ctx, r.(*Req))
				if err != nil {
					if Code(err) == codes.Internal {
						g.logger.Error("rpc failed", zap.String("method", name), zap.Error(err))
					}
					return nil, toStatus(err)
				}
				return resp, nil
			}
			if interceptor == nil {
				return call(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, req, info, call)
		},
	}
}

func (g *GameServiceServer) subscribe(stream grpc.ServerStream) error {
	var req Empty
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	sess, err := g.session(stream.Context())
	if err != nil {
		return toStatus(err)
	}
	return g.svc.Subscribe(stream.Context(), sess, func(m feed.Message) error {
		return stream.SendMsg(&m)
	})
}

var gameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*gameService)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", public((*Service).Register)),
		unary("Login", public((*Service).rpcLogin)),
		unary("Logout", authed((*Service).rpcLogout)),
		unary("State", authed((*Service).rpcState)),
		unary("Enhance", authed((*Service).Enhance)),
		unary("EnhanceElement", authed((*Service).EnhanceElement)),
		unary("Battle", authed((*Service).Battle)),
		unary("BuyScrolls", authed((*Service).BuyScrolls)),
		unary("AssignElement", authed((*Service).AssignElement)),
		unary("ResetWeapon", authed((*Service).ResetWeapon)),
		unary("ClaimAttendance", authed((*Service).ClaimAttendance)),
		unary("Showoff", authed((*Service).rpcShowoff)),
		unary("Chat", authed((*Service).Chat)),
		unary("Whisper", authed((*Service).Whisper)),
		unary("Feed", authed((*Service).rpcFeed)),
		unary("Leaderboard", public((*Service).Leaderboard)),
		unary("Odds", public((*Service).rpcOdds)),
		unary("GiftGold", authed((*Service).GiftGold)),
		unary("ArmBoost", authed((*Service).rpcArmBoost)),
		unary("PurgeFeed", authed((*Service).PurgeFeed)),
		unary("PurgeInactive", authed((*Service).PurgeInactiveAccounts)),
		unary("ResetAll", authed((*Service).rpcResetAll)),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Subscribe",
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			return srv.(*GameServiceServer).subscribe(stream)
		},
	}},
	Metadata: "knight/v1/game.json",
}

// Adapters giving every RPC the (ctx, [sess,] req) -> (reply, error) shape.

func (s *Service) rpcLogin(ctx context.Context, req LoginRequest) (LoginReply, error) {
	reply, _, err := s.Login(ctx, req)
	return reply, err
}

func (s *Service) rpcLogout(ctx context.Context, sess *session.Session, _ Empty) (Empty, error) {
	return Empty{}, s.Logout(ctx, sess)
}

func (s *Service) rpcState(ctx context.Context, sess *session.Session, _ Empty) (PlayerView, error) {
	return s.State(ctx, sess)
}

func (s *Service) rpcShowoff(ctx context.Context, sess *session.Session, _ Empty) (feed.Message, error) {
	return s.Showoff(ctx, sess)
}

func (s *Service) rpcFeed(ctx context.Context, sess *session.Session, _ Empty) (FeedReply, error) {
	return s.Feed(ctx, sess), nil
}

func (s *Service) rpcOdds(_ context.Context, req OddsRequest) (OddsReply, error) {
	return Odds(req)
}

func (s *Service) rpcArmBoost(ctx context.Context, sess *session.Session, req ArmBoostRequest) (Empty, error) {
	return Empty{}, s.ArmBoost(ctx, sess, req)
}

func (s *Service) rpcResetAll(ctx context.Context, sess *session.Session, _ Empty) (CountReply, error) {
	return s.ResetAll(ctx, sess)
}
