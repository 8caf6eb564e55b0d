package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/almacen/internal/bridge/auth"
	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/audit"
	"github.com/dmitrijs2005/almacen/internal/repositories/memories"
	"github.com/dmitrijs2005/almacen/internal/repositories/settings"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultClientID names the interactive client in access tokens.
const DefaultClientID = "almacen-cli"

// DefaultTokenValidity is the lifetime of the tokens the client signs. It
// stays below the bridge's default maximum.
const DefaultTokenValidity = time.Minute

// Client implements repomanager.RepositoryManager on top of a bridge
// connection.
type Client struct {
	conn     *grpc.ClientConn
	secret   []byte
	validity time.Duration

	mu    sync.Mutex
	token string
}

// Dial connects to the bridge at addr. The connection is lazy; use Ping to
// find out whether the bridge is actually there.
func Dial(addr, secret string, validity time.Duration, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{secret: []byte(secret), validity: validity}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("bridge client: %w", err)
	}
	c.conn = conn
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *Client) currentToken(renew bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" || renew {
		tok, err := auth.GenerateToken(DefaultClientID, c.secret, c.validity)
		if err != nil {
			return "", err
		}
		c.token = tok
	}
	return c.token, nil
}

// accessTokenInterceptor attaches the access token and, when the bridge
// reports it expired, issues a fresh one and retries once.
func (c *Client) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	token, err := c.currentToken(false)
	if err != nil {
		return err
	}

	err = invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	token, err = c.currentToken(true)
	if err != nil {
		return err
	}
	return invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
}

// call sends req as JSON on the named channel and decodes the reply into
// resp, which may be nil.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, fullMethod(method), wrapperspb.Bytes(payload), out); err != nil {
		return fromStatus(err)
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(out.GetValue(), resp); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", common.ErrStorage, method, err)
	}
	return nil
}

func (c *Client) Name() string { return "bridge" }

func (c *Client) Memories() memories.Repository { return memoryClient{c} }
func (c *Client) Audit() audit.Repository       { return auditClient{c} }
func (c *Client) Settings() settings.Repository { return settingsClient{c} }

// ReplaceAll ships the snapshot to the bridge, which applies it in one
// transaction.
func (c *Client) ReplaceAll(ctx context.Context, snap *models.Snapshot) error {
	return c.call(ctx, MethodReplaceAll, snapshotMessage{
		Memories: snap.Memories,
		AuditLog: snap.AuditLog,
		Settings: snap.Settings,
	}, nil)
}

// Ping asks the bridge to check its own backend.
func (c *Client) Ping(ctx context.Context) error {
	var resp pingResponse
	if err := c.call(ctx, MethodPing, empty{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return errors.New("bridge unavailable")
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

type memoryClient struct{ c *Client }

func (r memoryClient) Save(ctx context.Context, m *models.Memory) error {
	return r.c.call(ctx, MethodSaveMemory, m, nil)
}

func (r memoryClient) Get(ctx context.Context, id int64) (*models.Memory, error) {
	var m models.Memory
	if err := r.c.call(ctx, MethodGetMemory, idRequest{ID: id}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r memoryClient) Delete(ctx context.Context, id int64) error {
	return r.c.call(ctx, MethodDeleteMemory, idRequest{ID: id}, nil)
}

func (r memoryClient) List(ctx context.Context, limit, offset int) ([]models.Memory, error) {
	var ms []models.Memory
	method, req := MethodListMemories, any(pageRequest{Limit: limit, Offset: offset})
	if limit <= 0 && offset <= 0 {
		method, req = MethodAllMemories, empty{}
	}
	if err := r.c.call(ctx, method, req, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

func (r memoryClient) Count(ctx context.Context) (int, error) {
	var resp countResponse
	if err := r.c.call(ctx, MethodCountMemories, empty{}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

type auditClient struct{ c *Client }

func (r auditClient) Append(ctx context.Context, e *models.AuditEntry) error {
	return r.c.call(ctx, MethodAppendAudit, e, nil)
}

func (r auditClient) Last(ctx context.Context) (*models.AuditEntry, error) {
	var e *models.AuditEntry
	if err := r.c.call(ctx, MethodLastAudit, empty{}, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r auditClient) Query(ctx context.Context, f models.AuditFilter, limit, offset int) ([]models.AuditEntry, int, error) {
	var resp queryAuditResponse
	req := queryAuditRequest{Filter: f, Limit: limit, Offset: offset}
	if err := r.c.call(ctx, MethodQueryAudit, req, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Entries, resp.Total, nil
}

func (r auditClient) All(ctx context.Context) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := r.c.call(ctx, MethodAllAudit, empty{}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

type settingsClient struct{ c *Client }

func (r settingsClient) Get(ctx context.Context, key string) ([]byte, error) {
	var resp settingResponse
	if err := r.c.call(ctx, MethodGetSetting, settingRequest{Key: key}, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (r settingsClient) Set(ctx context.Context, key string, value []byte) error {
	return r.c.call(ctx, MethodSetSetting, settingRequest{Key: key, Value: value}, nil)
}

func (r settingsClient) Delete(ctx context.Context, key string) error {
	return r.c.call(ctx, MethodDeleteSetting, settingRequest{Key: key}, nil)
}

func (r settingsClient) List(ctx context.Context) (map[string][]byte, error) {
	values := map[string][]byte{}
	if err := r.c.call(ctx, MethodListSettings, empty{}, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (r settingsClient) Clear(ctx context.Context) error {
	return r.c.call(ctx, MethodClearSettings, empty{}, nil)
}
