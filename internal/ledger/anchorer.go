package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shamba/internal/store"
)

// Job is one order milestone to anchor on the ledger.
type Job struct {
	OrderID   int64
	OrderRef  string
	Milestone string
}

// Recorder is the slice of storage the anchorer writes to.
type Recorder interface {
	Create(ctx context.Context, rec *store.LedgerRecord) error
}

// Anchorer is a bounded worker pool that anchors order milestones on the
// ledger. Enqueue blocks the caller when the queue is full: anchoring work is
// never dropped, callers slow down instead.
type Anchorer struct {
	submitter Submitter
	recorder  Recorder
	logger    *zap.SugaredLogger

	jobs chan Job
	wg   sync.WaitGroup
	once sync.Once
}

func NewAnchorer(submitter Submitter, recorder Recorder, logger *zap.SugaredLogger, workers, queueSize int) *Anchorer {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	a := &Anchorer{
		submitter: submitter,
		recorder:  recorder,
		logger:    logger,
		jobs:      make(chan Job, queueSize),
	}

	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
	return a
}

// Enqueue hands a milestone to the pool. Blocks while the queue is full.
func (a *Anchorer) Enqueue(job Job) {
	a.jobs <- job
}

// Stop closes the queue and waits until every accepted job has been
// processed.
func (a *Anchorer) Stop() {
	a.once.Do(func() { close(a.jobs) })
	a.wg.Wait()
}

func (a *Anchorer) worker() {
	defer a.wg.Done()

	for job := range a.jobs {
		if err := a.anchor(job); err != nil {
			a.logger.Errorw("ledger anchoring failed",
				"order_id", job.OrderID, "milestone", job.Milestone, "error", err)
		}
	}
}

func (a *Anchorer) anchor(job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"order_ref": job.OrderRef,
		"milestone": job.Milestone,
		"nonce":     uuid.NewString(),
		"at":        time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	sum := sha256.Sum256(payload)

	txID, consensusAt, err := a.submitter.Submit(ctx, payload)
	if err != nil {
		return err
	}

	rec := &store.LedgerRecord{
		OrderID:     job.OrderID,
		Milestone:   job.Milestone,
		TxID:        txID,
		PayloadHash: hex.EncodeToString(sum[:]),
		ConsensusAt: consensusAt,
	}
	if err := a.recorder.Create(ctx, rec); err != nil {
		return err
	}

	a.logger.Infow("milestone anchored", "order_id", job.OrderID, "milestone", job.Milestone, "tx_id", txID)
	return nil
}
