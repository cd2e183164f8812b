package app

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"

	"goattach/internal/daemon"
	"goattach/internal/journal"
)

// ListParams defines filters and timeout.
type ListParams struct {
	Filters ListFilters
	Timeout time.Duration
}

// Outcomes fetches journal entries matching the provided filters, oldest first.
func (a *App) Outcomes(ctx context.Context, params ListParams) ([]journal.Entry, error) {
	filter, err := params.Filters.build()
	if err != nil {
		return nil, err
	}
	req, err := daemon.FilterToStruct(filter)
	if err != nil {
		return nil, err
	}

	var entries []journal.Entry
	err = a.withClient(ctx, params.Timeout, func(ctx context.Context, client daemon.StatusClient) error {
		resp, err := client.Outcomes(ctx, req)
		if err != nil {
			return fmt.Errorf("status outcomes RPC failed: %w", err)
		}
		entries = make([]journal.Entry, 0, len(resp.GetValues()))
		for _, v := range resp.GetValues() {
			entries = append(entries, daemon.EntryFromStruct(v.GetStructValue()))
		}
		return nil
	})
	return entries, err
}

// Counts fetches the lifetime outcome counters of the running attacher.
func (a *App) Counts(ctx context.Context, timeout time.Duration) (map[journal.Outcome]int, error) {
	counts := make(map[journal.Outcome]int)
	err := a.withClient(ctx, timeout, func(ctx context.Context, client daemon.StatusClient) error {
		resp, err := client.Counts(ctx, &emptypb.Empty{})
		if err != nil {
			return fmt.Errorf("status counts RPC failed: %w", err)
		}
		for k, v := range resp.GetFields() {
			counts[journal.Outcome(k)] = int(v.GetNumberValue())
		}
		return nil
	})
	return counts, err
}
