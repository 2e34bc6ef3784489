// Copyright 2025 Certen Protocol
//
// ResolvedHeadFetcher normalises a chain's head block through its
// configured resolver (spec §4.8) before the monitor ever sees it, so
// the head the monitor broadcasts, and the scan ranges derived from it,
// use the resolved number. Block numbers copied from individual logs
// (such as AMBMessage.BlockNumber) are not passed through the resolver.

package relayer

import (
	"context"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/monitor"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/resolver"
)

// ResolvedHeadFetcher adapts a raw monitor.HeadFetcher plus a
// resolver.Resolver into a single monitor.HeadFetcher.
type ResolvedHeadFetcher struct {
	client   monitor.HeadFetcher
	resolver resolver.Resolver
}

func NewResolvedHeadFetcher(client monitor.HeadFetcher, r resolver.Resolver) *ResolvedHeadFetcher {
	return &ResolvedHeadFetcher{client: client, resolver: r}
}

func (f *ResolvedHeadFetcher) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := f.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return f.resolver.GetTransactionBlockNumber(ctx, head)
}
