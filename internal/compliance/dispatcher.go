package compliance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shamba/internal/store"
)

// KindEUDR is the due-diligence statement filed for supplied orders bound for
// export.
const KindEUDR = "EUDR_DUE_DILIGENCE"

// Job is one due-diligence statement to file for a supplied order.
type Job struct {
	OrderID  int64
	OrderRef string
	Kind     string
}

// Recorder is the slice of storage the dispatcher writes to.
type Recorder interface {
	Create(ctx context.Context, doc *store.ComplianceDocument) error
}

// Dispatcher is a bounded worker pool filing compliance documents for
// supplied orders. Like the ledger anchorer, Enqueue blocks when the queue is
// full so no statement is silently dropped.
type Dispatcher struct {
	recorder Recorder
	logger   *zap.SugaredLogger

	jobs chan Job
	wg   sync.WaitGroup
	once sync.Once
}

func NewDispatcher(recorder Recorder, logger *zap.SugaredLogger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 32
	}

	d := &Dispatcher{
		recorder: recorder,
		logger:   logger,
		jobs:     make(chan Job, queueSize),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue hands a statement to the pool. Blocks while the queue is full.
func (d *Dispatcher) Enqueue(job Job) {
	d.jobs <- job
}

// Stop closes the queue and waits for in-flight statements to finish.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.jobs) })
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for job := range d.jobs {
		if err := d.file(job); err != nil {
			d.logger.Errorw("compliance filing failed",
				"order_id", job.OrderID, "kind", job.Kind, "error", err)
		}
	}
}

func (d *Dispatcher) file(job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	kind := job.Kind
	if kind == "" {
		kind = KindEUDR
	}

	doc := &store.ComplianceDocument{
		OrderID:     job.OrderID,
		Kind:        kind,
		Reference:   fmt.Sprintf("%s-%s", job.OrderRef, uuid.NewString()[:8]),
		SubmittedAt: time.Now().UTC(),
	}
	if err := d.recorder.Create(ctx, doc); err != nil {
		return err
	}

	d.logger.Infow("compliance document filed", "order_id", job.OrderID, "reference", doc.Reference)
	return nil
}
