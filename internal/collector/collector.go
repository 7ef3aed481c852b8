package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tyemirov/actions-timing/internal/actions"
	"github.com/tyemirov/actions-timing/internal/window"
)

const (
	defaultChannelCapacityConstant   = 1
	runListErrorTemplateConstant     = "unable to collect runs of workflow %d (%s): %w"
	runListsCollectedMessageConstant = "Collected workflow run lists"
	timingDroppedMessageConstant     = "Dropped workflow run without timing"
	timingsCollectedMessageConstant  = "Collected workflow run timings"
	workflowNameLogFieldConstant     = "workflow_name"
	workflowCountLogFieldConstant    = "workflow_count"
	runCountLogFieldConstant         = "run_count"
	timingCountLogFieldConstant      = "timing_count"
	failureCountLogFieldConstant     = "failure_count"
)

// TimingSource fetches the timing of a single workflow run.
type TimingSource interface {
	FetchRunTiming(executionContext context.Context, repository actions.Repository, runID int64) (actions.Timing, error)
}

// Configuration tunes the concurrency of a Collector.
type Configuration struct {
	// MaximumConcurrentRequests caps outbound requests across every workflow and run. Non-positive means unbounded.
	MaximumConcurrentRequests int
	// ChannelCapacity is the buffer size of the per-workflow timing channel.
	ChannelCapacity int
	DeduplicateRuns bool
}

// WorkflowRuns pairs a workflow with its runs inside the window.
type WorkflowRuns struct {
	Workflow actions.Workflow
	Runs     []actions.WorkflowRun
}

// TimingBatch holds the timings collected for one workflow keyed by run identifier.
type TimingBatch struct {
	Timings  map[int64]actions.Timing
	Failures int
}

// Collector gathers run lists for every workflow and then the timing of every run.
type Collector struct {
	logger          *zap.Logger
	repository      actions.Repository
	runSource       RunSource
	timingSource    TimingSource
	requestGate     *RequestGate
	channelCapacity int
	deduplicateRuns bool
	progress        ProgressReporter
}

type timingOutcome struct {
	runID  int64
	timing actions.Timing
	err    error
}

// NewCollector constructs a Collector. A nil progress reporter discards progress.
func NewCollector(logger *zap.Logger, repository actions.Repository, runSource RunSource, timingSource TimingSource, configuration Configuration, progress ProgressReporter) *Collector {
	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}

	resolvedProgress := progress
	if resolvedProgress == nil {
		resolvedProgress = NopProgress{}
	}

	resolvedChannelCapacity := configuration.ChannelCapacity
	if resolvedChannelCapacity <= 0 {
		resolvedChannelCapacity = defaultChannelCapacityConstant
	}

	return &Collector{
		logger:          resolvedLogger,
		repository:      repository,
		runSource:       runSource,
		timingSource:    timingSource,
		requestGate:     NewRequestGate(configuration.MaximumConcurrentRequests),
		channelCapacity: resolvedChannelCapacity,
		deduplicateRuns: configuration.DeduplicateRuns,
		progress:        resolvedProgress,
	}
}

// CollectRunLists paginates every workflow concurrently. The first failure cancels the
// remaining workflows and is returned; otherwise results follow the order of workflows.
func (collector *Collector) CollectRunLists(executionContext context.Context, workflows []actions.Workflow, dateWindow window.Window) ([]WorkflowRuns, error) {
	paginator := NewPaginator(collector.logger, collector.runSource, collector.repository, collector.requestGate, collector.deduplicateRuns)
	runLists := make([]WorkflowRuns, len(workflows))

	group, groupContext := errgroup.WithContext(executionContext)
	for workflowIndex, workflow := range workflows {
		group.Go(func() error {
			runs, collectError := paginator.CollectRuns(groupContext, workflow.ID, dateWindow)
			if collectError != nil {
				return fmt.Errorf(runListErrorTemplateConstant, workflow.ID, workflow.Name, collectError)
			}
			runLists[workflowIndex] = WorkflowRuns{Workflow: workflow, Runs: runs}
			return nil
		})
	}

	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}

	collector.logger.Info(
		runListsCollectedMessageConstant,
		zap.Int(workflowCountLogFieldConstant, len(workflows)),
	)

	return runLists, nil
}

// CollectTimings fetches the timing of every run concurrently. A failed fetch is logged and
// counted, and the run is left out of the batch. The returned error is non-nil only when the
// context ends before every fetch has reported.
func (collector *Collector) CollectTimings(executionContext context.Context, workflow actions.Workflow, runs []actions.WorkflowRun) (TimingBatch, error) {
	outcomes := make(chan timingOutcome, collector.channelCapacity)

	for _, run := range runs {
		go func() {
			timing, fetchError := throughGate(executionContext, collector.requestGate, func(gatedContext context.Context) (actions.Timing, error) {
				return collector.timingSource.FetchRunTiming(gatedContext, collector.repository, run.ID)
			})
			select {
			case outcomes <- timingOutcome{runID: run.ID, timing: timing, err: fetchError}:
			case <-executionContext.Done():
			}
		}()
	}

	collector.progress.Start(workflow.Name, len(runs))
	defer collector.progress.Finish()

	batch := TimingBatch{Timings: make(map[int64]actions.Timing, len(runs))}
	for received := 0; received < len(runs); received++ {
		select {
		case outcome := <-outcomes:
			collector.progress.Increment()
			if outcome.err != nil {
				batch.Failures++
				collector.logger.Warn(
					timingDroppedMessageConstant,
					zap.Int64(workflowIdentifierLogFieldConstant, workflow.ID),
					zap.Int64(runIdentifierLogFieldConstant, outcome.runID),
					zap.Error(outcome.err),
				)
				continue
			}
			outcome.timing.RunID = outcome.runID
			batch.Timings[outcome.runID] = outcome.timing
		case <-executionContext.Done():
			return TimingBatch{}, executionContext.Err()
		}
	}
	if contextError := executionContext.Err(); contextError != nil {
		return TimingBatch{}, contextError
	}

	collector.logger.Info(
		timingsCollectedMessageConstant,
		zap.Int64(workflowIdentifierLogFieldConstant, workflow.ID),
		zap.String(workflowNameLogFieldConstant, workflow.Name),
		zap.Int(runCountLogFieldConstant, len(runs)),
		zap.Int(timingCountLogFieldConstant, len(batch.Timings)),
		zap.Int(failureCountLogFieldConstant, batch.Failures),
	)

	return batch, nil
}
