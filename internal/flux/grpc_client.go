package flux

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"

	"flux-exporter/internal/model"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// GRPCClient queries a scheduler gateway that fronts the Flux broker.
type GRPCClient struct {
	mu sync.Mutex

	logger         *slog.Logger
	addr           string
	tlsConfig      *tls.Config
	token          string
	listJobsMethod string
	getRankMethod  string
	conn           *grpc.ClientConn
	dialTimeout    time.Duration
	dialOptions    []grpc.DialOption
}

func NewGRPCClient(addr string, tlsCfg *tls.Config, token, listJobsMethod, getRankMethod string, dialTimeout time.Duration, logger *slog.Logger, opts ...grpc.DialOption) *GRPCClient {
	if dialTimeout <= 0 {
		dialTimeout = 8 * time.Second
	}
	return &GRPCClient{
		logger:         logger,
		addr:           addr,
		tlsConfig:      tlsCfg,
		token:          token,
		listJobsMethod: listJobsMethod,
		getRankMethod:  getRankMethod,
		dialTimeout:    dialTimeout,
		dialOptions:    opts,
	}
}

func (c *GRPCClient) ListJobs(ctx context.Context) ([]model.JobSnapshot, error) {
	var resp ListJobsResponse
	if err := c.invoke(ctx, c.listJobsMethod, ListJobsRequest{IncludeInactive: true}, &resp); err != nil {
		return nil, &QueryError{Op: "list jobs", Err: err}
	}
	return resp.Snapshots(), nil
}

func (c *GRPCClient) HighestRank(ctx context.Context) (int, error) {
	var resp GetRankResponse
	if err := c.invoke(ctx, c.getRankMethod, GetRankRequest{}, &resp); err != nil {
		return 0, &QueryError{Op: "get rank", Err: err}
	}
	return resp.HighestRank(), nil
}

func (c *GRPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	conn, err := c.ensureConn(ctx)
	if err != nil {
		return err
	}
	return conn.Invoke(c.decorateContext(ctx), method, req, resp)
}

// ensureConn returns the shared connection, dialing it on first use. The dial
// runs outside c.mu so a slow gateway never holds up a concurrent query past
// its own deadline; when two dials race, the loser's connection is closed.
func (c *GRPCClient) ensureConn(ctx context.Context) (*grpc.ClientConn, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	var creds credentials.TransportCredentials
	if c.tlsConfig != nil {
		creds = credentials.NewTLS(c.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
	}, c.dialOptions...)

	conn, err := grpc.DialContext(dialCtx, c.addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", c.addr, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = conn.Close()
		return c.conn, nil
	}
	c.conn = conn
	c.logger.Info("scheduler gateway connected", "addr", c.addr)
	return conn, nil
}

func (c *GRPCClient) decorateContext(ctx context.Context) context.Context {
	if c.token != "" {
		return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return ctx
}
