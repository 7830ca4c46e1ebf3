package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"versechain/native/chain"
)

var _ chain.Recorder = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndQueryEvents(t *testing.T) {
	store := openTestStore(t)

	store.RecordChainEvent(chain.Event{
		ChainID:   "chain-1",
		Verse:     "verse-1",
		Principal: "0xabc",
		Type:      chain.EventChainCreated,
		Leverage:  "1800000000000000000",
		Value:     "1000000",
		At:        100,
	})
	store.RecordChainEvent(chain.Event{
		ChainID:   "chain-1",
		Verse:     "verse-1",
		Principal: "0xabc",
		Type:      chain.EventStepApplied,
		StepIndex: 0,
		Kind:      "borrow",
		Value:     "1500000",
		At:        101,
	})
	store.RecordChainEvent(chain.Event{
		ChainID:   "chain-2",
		Verse:     "verse-1",
		Principal: "0xdef",
		Type:      chain.EventChainCreated,
		At:        102,
	})

	require.Eventually(t, func() bool {
		events, err := store.EventsForChain("chain-1")
		return err == nil && len(events) == 2
	}, 2*time.Second, 10*time.Millisecond)

	events, err := store.EventsForChain("chain-1")
	require.NoError(t, err)
	require.Equal(t, chain.EventChainCreated, events[0].Type)
	require.Equal(t, chain.EventStepApplied, events[1].Type)
	require.Equal(t, "borrow", events[1].Kind)

	require.Eventually(t, func() bool {
		other, err := store.EventsForChain("chain-2")
		return err == nil && len(other) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventsForChainOrdered(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		store.RecordChainEvent(chain.Event{
			ChainID:   "chain-1",
			Verse:     "verse-1",
			Type:      chain.EventStepApplied,
			StepIndex: i,
			At:        int64(100 + i),
		})
	}

	require.Eventually(t, func() bool {
		events, err := store.EventsForChain("chain-1")
		return err == nil && len(events) == 3
	}, 2*time.Second, 10*time.Millisecond)

	events, err := store.EventsForChain("chain-1")
	require.NoError(t, err)
	for i, event := range events {
		require.Equal(t, i, event.StepIndex)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", nil)
	require.ErrorIs(t, err, ErrPathRequired)
}
