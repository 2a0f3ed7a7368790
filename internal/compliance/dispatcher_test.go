package compliance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shamba/internal/store"
)

type fakeRecorder struct {
	mu   sync.Mutex
	docs []*store.ComplianceDocument
}

func (f *fakeRecorder) Create(_ context.Context, doc *store.ComplianceDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return nil
}

func TestDispatcherFilesEveryJobBeforeStop(t *testing.T) {
	recorder := &fakeRecorder{}
	d := NewDispatcher(recorder, zap.NewNop().Sugar(), 2, 4)

	const jobs = 10
	for i := 1; i <= jobs; i++ {
		d.Enqueue(Job{OrderID: int64(i), OrderRef: fmt.Sprintf("ORD-%d", i), Kind: KindEUDR})
	}
	d.Stop()

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.docs, jobs)
	for _, doc := range recorder.docs {
		assert.Equal(t, KindEUDR, doc.Kind)
		assert.True(t, strings.HasPrefix(doc.Reference, fmt.Sprintf("ORD-%d-", doc.OrderID)))
		assert.False(t, doc.SubmittedAt.IsZero())
	}
}

func TestDispatcherDefaultsKind(t *testing.T) {
	recorder := &fakeRecorder{}
	d := NewDispatcher(recorder, zap.NewNop().Sugar(), 1, 1)

	d.Enqueue(Job{OrderID: 1, OrderRef: "ORD-1"})
	d.Stop()

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.docs, 1)
	assert.Equal(t, KindEUDR, recorder.docs[0].Kind)
}
