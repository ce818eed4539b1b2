package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coinwatch-go/alerting"
	"coinwatch-go/market"
	"coinwatch-go/notify"
)

type fakeFetcher struct {
	responses []map[string]market.Snapshot
	errs      []error
	calls     int
}

func (f *fakeFetcher) FetchMarkets(_ context.Context, _ []string) (map[string]market.Snapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func snapPage(price float64) map[string]market.Snapshot {
	return map[string]market.Snapshot{
		"bitcoin": {CoinID: "bitcoin", Name: "Bitcoin", Price: market.Float(price)},
	}
}

func newTestWatcher(t *testing.T, fetcher SnapshotFetcher) (*Watcher, *market.SnapshotStore, *alerting.Registry, *notify.MockSink) {
	t.Helper()
	store := market.NewSnapshotStore()
	reg := alerting.NewRegistry()
	sink := notify.NewMockSink("mock")
	w, err := New(Config{Universe: []string{"bitcoin"}}, Components{
		Fetcher:    fetcher,
		Store:      store,
		Registry:   reg,
		Dispatcher: notify.NewDispatcher(nil, sink),
	})
	require.NoError(t, err)
	return w, store, reg, sink
}

func TestPollOnceReplacesStoreAndFiresAlerts(t *testing.T) {
	fetcher := &fakeFetcher{responses: []map[string]market.Snapshot{
		snapPage(24999.99),
		snapPage(24000),
	}}
	w, store, reg, sink := newTestWatcher(t, fetcher)
	_, err := reg.Add("bitcoin", 25000)
	require.NoError(t, err)

	require.NoError(t, w.PollOnce(context.Background()))
	require.Equal(t, 1, store.Len())
	require.Equal(t, 1, sink.Count())
	require.Contains(t, sink.Sent()[0].Body, "fallen below $25000")
	require.Empty(t, reg.ListActive(), "fired rule must be deactivated")

	// Next cycle at a lower price: fire-once means no second notification.
	require.NoError(t, w.PollOnce(context.Background()))
	require.Equal(t, 1, sink.Count())
}

func TestPollOnceKeepsPriorSnapshotOnFetchError(t *testing.T) {
	fetchErr := errors.New("network down")
	fetcher := &fakeFetcher{
		responses: []map[string]market.Snapshot{snapPage(30000), snapPage(30000)},
		errs:      []error{nil, fetchErr},
	}
	w, store, _, _ := newTestWatcher(t, fetcher)

	require.NoError(t, w.PollOnce(context.Background()))
	require.Equal(t, 1, store.Len())
	first := store.LastFetched()

	err := w.PollOnce(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, store.Len(), "failed poll must not touch the mapping")
	require.Equal(t, first, store.LastFetched())
	require.ErrorIs(t, w.LastError(), fetchErr)

	// A later success clears the surfaced error.
	require.NoError(t, w.PollOnce(context.Background()))
	require.NoError(t, w.LastError())
}

func TestWatcherStartStop(t *testing.T) {
	fetcher := &fakeFetcher{responses: []map[string]market.Snapshot{snapPage(100)}}
	w, _, _, _ := newTestWatcher(t, fetcher)

	ctx := context.Background()
	require.Equal(t, StateIdle, w.State())
	require.NoError(t, w.Start(ctx))
	require.Error(t, w.Start(ctx), "double start must fail")
	require.NoError(t, w.Stop())
	require.Equal(t, StateStopped, w.State())
	require.Error(t, w.Stop(), "double stop must fail")

	// Restart from stopped works.
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Stop())
}

func TestSetPollIntervalIgnoresInvalid(t *testing.T) {
	fetcher := &fakeFetcher{responses: []map[string]market.Snapshot{snapPage(100)}}
	w, _, _, _ := newTestWatcher(t, fetcher)

	def := w.PollInterval()
	w.SetPollInterval(0)
	require.Equal(t, def, w.PollInterval())
	w.SetPollInterval(def * 2)
	require.Equal(t, def*2, w.PollInterval())

	w.SetStalenessThreshold(-1)
	require.Equal(t, time.Duration(0), w.StalenessThreshold())
	w.SetStalenessThreshold(time.Minute)
	require.Equal(t, time.Minute, w.StalenessThreshold())
}
