package collector

import (
	"context"

	"flux-exporter/internal/flux"
)

type NodeCollector struct {
	client flux.Client
}

func NewNodeCollector(client flux.Client) *NodeCollector {
	return &NodeCollector{client: client}
}

func (c *NodeCollector) Collect(ctx context.Context) (rank int, nodesUp int64, err error) {
	rank, err = c.client.HighestRank(ctx)
	if err != nil {
		return 0, 0, err
	}
	return rank, NodeCountFromRank(rank), nil
}
