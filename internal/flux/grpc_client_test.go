package flux

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"flux-exporter/internal/model"
)

const (
	testListJobsMethod = "/flux.scheduler.v1.SchedulerService/ListJobs"
	testGetRankMethod  = "/flux.scheduler.v1.SchedulerService/GetRank"
)

type fakeGateway struct {
	jobs      ListJobsResponse
	rank      GetRankResponse
	failJobs  bool
	lastToken string
}

func (g *fakeGateway) handle(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			g.lastToken = v[0]
		}
	}
	switch method {
	case testListJobsMethod:
		var req ListJobsRequest
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}
		if g.failJobs {
			return status.Error(codes.Unavailable, "broker offline")
		}
		return stream.SendMsg(g.jobs)
	case testGetRankMethod:
		var req GetRankRequest
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}
		return stream.SendMsg(g.rank)
	default:
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
}

func newTestGRPCClient(t *testing.T, gw *fakeGateway, token string) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}), grpc.UnknownServiceHandler(gw.handle))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewGRPCClient("bufnet", nil, token, testListJobsMethod, testGetRankMethod, 5*time.Second, logger,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClientListJobs(t *testing.T) {
	gw := &fakeGateway{jobs: ListJobsResponse{Jobs: []JobFrame{
		{ID: "ƒ1", StateName: "RUN"},
		{ID: "ƒ2", StateName: "sched"},
	}}}
	c := newTestGRPCClient(t, gw, "s3cret")

	jobs, err := c.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.JobSnapshot{
		{ID: "ƒ1", StateName: "run"},
		{ID: "ƒ2", StateName: "sched"},
	}, jobs)
	assert.Equal(t, "Bearer s3cret", gw.lastToken)
}

func TestGRPCClientHighestRank(t *testing.T) {
	three := 3
	gw := &fakeGateway{rank: GetRankResponse{Rank: &three}}
	c := newTestGRPCClient(t, gw, "")

	rank, err := c.HighestRank(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rank)

	gw.rank = GetRankResponse{}
	rank, err = c.HighestRank(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, rank)
}

func TestGRPCClientGatewayError(t *testing.T) {
	gw := &fakeGateway{failJobs: true}
	c := newTestGRPCClient(t, gw, "")

	_, err := c.ListJobs(context.Background())
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
}

func TestJSONCodecRegisteredAtInit(t *testing.T) {
	assert.IsType(t, jsonCodec{}, encoding.GetCodec("json"))
}

func TestGRPCClientSlowDialDoesNotBlockOtherQueries(t *testing.T) {
	release := make(chan struct{})
	dialing := make(chan struct{})
	var once sync.Once

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewGRPCClient("unreachable", nil, "", testListJobsMethod, testGetRankMethod, 5*time.Second, logger,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			once.Do(func() { close(dialing) })
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return nil, errors.New("gateway unreachable")
			}
		}),
	)
	defer c.Close()

	listDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := c.ListJobs(ctx)
		listDone <- err
	}()
	<-dialing

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.HighestRank(ctx)
	elapsed := time.Since(start)
	close(release)

	require.Error(t, err)
	assert.Less(t, elapsed, 500*time.Millisecond)

	select {
	case err := <-listDone:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("ListJobs did not return after its deadline")
	}
}
