package gameserver

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/bitcory/knight/internal/game/feed"
)

// Client is a typed GameService client speaking the JSON codec.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

// NewClient wraps a connection. Calls are anonymous until Login or
// WithToken supplies a session token.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	return &Client{cc: c.cc, token: token}
}

// Token reports the current session token.
func (c *Client) Token() string { return c.token }

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, TokenHeader, c.token)
}

func call[Req, Resp any](ctx context.Context, c *Client, method string, req Req) (Resp, error) {
	var resp Resp
	err := c.cc.Invoke(c.outgoing(ctx), "/"+ServiceName+"/"+method, &req, &resp, grpc.CallContentSubtype(CodecName))
	return resp, err
}

func (c *Client) Register(ctx context.Context, username, password string) (PlayerView, error) {
	return call[RegisterRequest, PlayerView](ctx, c, "Register", RegisterRequest{Username: username, Password: password})
}

// Login authenticates and stores the session token on c.
func (c *Client) Login(ctx context.Context, username, password string) (LoginReply, error) {
	reply, err := call[LoginRequest, LoginReply](ctx, c, "Login", LoginRequest{Username: username, Password: password})
	if err == nil {
		c.token = reply.Token
	}
	return reply, err
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := call[Empty, Empty](ctx, c, "Logout", Empty{})
	if err == nil {
		c.token = ""
	}
	return err
}

func (c *Client) State(ctx context.Context) (PlayerView, error) {
	return call[Empty, PlayerView](ctx, c, "State", Empty{})
}

func (c *Client) Enhance(ctx context.Context, req EnhanceRequest) (EnhanceReply, error) {
	return call[EnhanceRequest, EnhanceReply](ctx, c, "Enhance", req)
}

func (c *Client) EnhanceElement(ctx context.Context, req EnhanceElementRequest) (EnhanceReply, error) {
	return call[EnhanceElementRequest, EnhanceReply](ctx, c, "EnhanceElement", req)
}

func (c *Client) Battle(ctx context.Context, req BattleRequest) (BattleReply, error) {
	return call[BattleRequest, BattleReply](ctx, c, "Battle", req)
}

func (c *Client) BuyScrolls(ctx context.Context, count int) (PlayerView, error) {
	return call[BuyScrollsRequest, PlayerView](ctx, c, "BuyScrolls", BuyScrollsRequest{Count: count})
}

func (c *Client) AssignElement(ctx context.Context, element string) (PlayerView, error) {
	return call[AssignElementRequest, PlayerView](ctx, c, "AssignElement", AssignElementRequest{Element: element})
}

func (c *Client) ResetWeapon(ctx context.Context, weaponType string) (PlayerView, error) {
	return call[ResetWeaponRequest, PlayerView](ctx, c, "ResetWeapon", ResetWeaponRequest{Type: weaponType})
}

func (c *Client) ClaimAttendance(ctx context.Context) (PlayerView, error) {
	return call[ClaimAttendanceRequest, PlayerView](ctx, c, "ClaimAttendance", ClaimAttendanceRequest{})
}

func (c *Client) Showoff(ctx context.Context) (feed.Message, error) {
	return call[Empty, feed.Message](ctx, c, "Showoff", Empty{})
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	return call[ChatRequest, ChatReply](ctx, c, "Chat", req)
}

func (c *Client) Whisper(ctx context.Context, to, text string) (feed.Message, error) {
	return call[WhisperRequest, feed.Message](ctx, c, "Whisper", WhisperRequest{To: to, Text: text})
}

func (c *Client) Feed(ctx context.Context) (FeedReply, error) {
	return call[Empty, FeedReply](ctx, c, "Feed", Empty{})
}

func (c *Client) Leaderboard(ctx context.Context, limit int) (LeaderboardReply, error) {
	return call[LeaderboardRequest, LeaderboardReply](ctx, c, "Leaderboard", LeaderboardRequest{Limit: limit})
}

func (c *Client) Odds(ctx context.Context, req OddsRequest) (OddsReply, error) {
	return call[OddsRequest, OddsReply](ctx, c, "Odds", req)
}

func (c *Client) GiftGold(ctx context.Context, username string, amount int64) (PlayerView, error) {
	return call[GiftGoldRequest, PlayerView](ctx, c, "GiftGold", GiftGoldRequest{Username: username, Amount: amount})
}

func (c *Client) ArmBoost(ctx context.Context, username string) error {
	_, err := call[ArmBoostRequest, Empty](ctx, c, "ArmBoost", ArmBoostRequest{Username: username})
	return err
}

func (c *Client) PurgeFeed(ctx context.Context, olderThanDays int) (CountReply, error) {
	return call[PurgeFeedRequest, CountReply](ctx, c, "PurgeFeed", PurgeFeedRequest{OlderThanDays: olderThanDays})
}

func (c *Client) PurgeInactive(ctx context.Context, days int) (CountReply, error) {
	return call[PurgeInactiveRequest, CountReply](ctx, c, "PurgeInactive", PurgeInactiveRequest{Days: days})
}

func (c *Client) ResetAll(ctx context.Context) (CountReply, error) {
	return call[Empty, CountReply](ctx, c, "ResetAll", Empty{})
}

// Subscribe streams feed messages to fn until ctx ends, the server closes
// the stream, or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(feed.Message) error) error {
	desc := &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true}
	stream, err := c.cc.NewStream(c.outgoing(ctx), desc, "/"+ServiceName+"/Subscribe", grpc.CallContentSubtype(CodecName))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var m feed.Message
		if err := stream.RecvMsg(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
}
