package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shamba/internal/store"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeSubmitter) Submit(_ context.Context, _ []byte) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", time.Time{}, errors.New("ledger unreachable")
	}
	return fmt.Sprintf("0.0.1234@%d", f.calls), time.Now().UTC(), nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []*store.LedgerRecord
}

func (f *fakeRecorder) Create(_ context.Context, rec *store.LedgerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func TestAnchorerProcessesEveryJobBeforeStop(t *testing.T) {
	submitter := &fakeSubmitter{}
	recorder := &fakeRecorder{}
	a := NewAnchorer(submitter, recorder, zap.NewNop().Sugar(), 3, 8)

	const jobs = 20
	for i := 1; i <= jobs; i++ {
		a.Enqueue(Job{OrderID: int64(i), OrderRef: fmt.Sprintf("ORD-%d", i), Milestone: "SUPPLIED_AND_PAID"})
	}

	// Stop drains: every accepted job must be anchored before it returns.
	a.Stop()

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.recs, jobs)

	seen := make(map[int64]struct{})
	for _, rec := range recorder.recs {
		assert.NotEmpty(t, rec.TxID)
		assert.Len(t, rec.PayloadHash, 64)
		assert.False(t, rec.ConsensusAt.IsZero())
		seen[rec.OrderID] = struct{}{}
	}
	assert.Len(t, seen, jobs)
}

func TestAnchorerSubmitFailureSkipsRecord(t *testing.T) {
	submitter := &fakeSubmitter{fail: true}
	recorder := &fakeRecorder{}
	a := NewAnchorer(submitter, recorder, zap.NewNop().Sugar(), 1, 4)

	a.Enqueue(Job{OrderID: 1, OrderRef: "ORD-1", Milestone: "SUPPLIED_AND_PAID"})
	a.Stop()

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Empty(t, recorder.recs)
}

func TestAnchorerStopIsIdempotent(t *testing.T) {
	a := NewAnchorer(&fakeSubmitter{}, &fakeRecorder{}, zap.NewNop().Sugar(), 1, 1)
	a.Stop()
	a.Stop()
}
