package services

import (
	"context"
	"log"
	"sync"
	"time"

	"token_distributor/internal/config"
	"token_distributor/internal/metrics"
	"token_distributor/internal/models"
	"token_distributor/internal/processors"
	"token_distributor/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const ledgerWriteTimeout = 30 * time.Second

// BulkDistributor applies the DistributionService to many recipients. Each
// recipient succeeds or fails on its own and results keep the input order.
type BulkDistributor struct {
	service     DistributionService
	processor   *processors.RequestProcessor
	store       repository.DistributionStore
	metrics     *metrics.Metrics
	concurrency int
}

// NewBulkDistributor builds a distributor. store may be nil, in which case results
// are not recorded.
func NewBulkDistributor(
	service DistributionService,
	processor *processors.RequestProcessor,
	store repository.DistributionStore,
	metrics *metrics.Metrics,
	config *config.Config,
) *BulkDistributor {
	return &BulkDistributor{
		service:     service,
		processor:   processor,
		store:       store,
		metrics:     metrics,
		concurrency: max(config.Distribution.BulkConcurrency, 1),
	}
}

// DistributeRequest distributes to one already validated request and records the
// result in the ledger.
func (b *BulkDistributor) DistributeRequest(ctx context.Context, request *models.DistributionRequest) models.DistributionResult {
	result := b.distribute(ctx, request)
	b.record(ctx, "", []models.DistributionResult{result})
	return result
}

// DistributeBulk returns one result per input, in input order.
func (b *BulkDistributor) DistributeBulk(ctx context.Context, raws []models.RawDistributionRequest) []models.DistributionResult {
	return b.run(ctx, uuid.NewString(), raws, nil)
}

// DistributeBulkStream emits a start event, one progress event per finished
// recipient in completion order, and a final complete event, then closes the
// channel. The channel is buffered for every event, so a consumer that stops
// reading never stalls the job.
func (b *BulkDistributor) DistributeBulkStream(ctx context.Context, raws []models.RawDistributionRequest) <-chan models.BulkEvent {
	jobId := uuid.NewString()
	total := len(raws)
	events := make(chan models.BulkEvent, total+2)
	events <- models.BulkEvent{Type: models.BulkEventStart, JobId: jobId, Total: total}

	go func() {
		defer close(events)
		results := b.run(ctx, jobId, raws, func(index int, result models.DistributionResult) {
			events <- models.BulkEvent{
				Type:   models.BulkEventProgress,
				JobId:  jobId,
				Index:  index,
				Total:  total,
				Result: &result,
			}
		})
		summary := models.Summarize(results)
		events <- models.BulkEvent{
			Type:    models.BulkEventComplete,
			JobId:   jobId,
			Total:   total,
			Summary: &summary,
		}
	}()
	return events
}

// run schedules at most concurrency recipients at a time. Once ctx is done no new
// recipient is started; the ones already submitted are not recalled.
func (b *BulkDistributor) run(ctx context.Context, jobId string, raws []models.RawDistributionRequest, onResult func(int, models.DistributionResult)) []models.DistributionResult {
	log.Printf("🚀 Starting bulk distribution %s for %d recipients", jobId, len(raws))
	b.metrics.ObserveBulkJob()

	results := make([]models.DistributionResult, len(raws))
	var mu sync.Mutex
	finish := func(index int, result models.DistributionResult) {
		mu.Lock()
		defer mu.Unlock()
		results[index] = result
		if onResult != nil {
			onResult(index, result)
		}
	}

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, raw := range raws {
		if ctx.Err() != nil {
			finish(i, cancelledResult(raw.Recipient()))
			continue
		}
		g.Go(func() error {
			finish(i, b.processOne(ctx, raw))
			return nil
		})
	}
	_ = g.Wait()

	b.record(ctx, jobId, results)
	summary := models.Summarize(results)
	log.Printf("✅ Bulk distribution %s complete: %d succeeded, %d failed", jobId, summary.SuccessfulDistributions, summary.FailedDistributions)
	return results
}

func (b *BulkDistributor) processOne(ctx context.Context, raw models.RawDistributionRequest) models.DistributionResult {
	if ctx.Err() != nil {
		return cancelledResult(raw.Recipient())
	}
	request, err := b.processor.ProcessRequest(raw)
	if err != nil {
		b.metrics.ObserveDistribution(KindValidation, 0, decimal.Zero)
		return failureResult(raw.Recipient(), err)
	}
	return b.distribute(ctx, request)
}

func (b *BulkDistributor) distribute(ctx context.Context, request *models.DistributionRequest) models.DistributionResult {
	record, err := b.service.Distribute(ctx, request.WalletAddress, request.TokensToDistribute(), request.Metadata())
	if err != nil {
		return failureResult(request.Recipient(), err)
	}
	return models.DistributionResult{
		Recipient:    request.Recipient(),
		Success:      true,
		Distribution: request.Allocation(),
		Transaction:  record,
	}
}

// record writes results to the ledger. It outlives ctx so that a timed out caller
// still gets its confirmed transfers recorded. Failures are only logged.
func (b *BulkDistributor) record(ctx context.Context, jobId string, results []models.DistributionResult) {
	if b.store == nil || len(results) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()

	entries := make([]models.DistributionEntry, 0, len(results))
	for _, result := range results {
		entries = append(entries, models.NewDistributionEntry(jobId, result))
	}

	var err error
	if len(entries) == 1 {
		err = b.store.AddDistribution(ctx, entries[0])
	} else {
		err = b.store.AddDistributions(ctx, entries)
	}
	if err != nil {
		log.Printf("⚠️ Failed to record %d distribution results: %v", len(entries), err)
	}
}

func failureResult(recipient models.Recipient, err error) models.DistributionResult {
	return models.DistributionResult{
		Recipient: recipient,
		Success:   false,
		ErrorKind: ErrorKind(err),
		Message:   err.Error(),
	}
}

func cancelledResult(recipient models.Recipient) models.DistributionResult {
	return models.DistributionResult{
		Recipient: recipient,
		Success:   false,
		ErrorKind: KindCancelled,
		Message:   "Distribution was not started because the job was cancelled",
	}
}
