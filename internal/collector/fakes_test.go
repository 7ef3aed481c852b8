package collector_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tyemirov/actions-timing/internal/actions"
)

const (
	unexpectedPageTemplateConstant = "page %d of workflow %d not configured"
	lastPageLinkTemplateConstant   = `<https://api.github.com/x?per_page=100&page=2>; rel="next", <https://api.github.com/x?per_page=100&page=%d>; rel="last"`
)

type fakeRunPage struct {
	runs       []actions.WorkflowRun
	linkHeader string
	err        error
	blockUntil bool
}

type fakeRunSource struct {
	mutex          sync.Mutex
	pages          map[int64][]fakeRunPage
	requestedPages map[int64][]int
}

func newFakeRunSource(pages map[int64][]fakeRunPage) *fakeRunSource {
	return &fakeRunSource{pages: pages, requestedPages: make(map[int64][]int)}
}

func (source *fakeRunSource) FetchWorkflowRunsPage(executionContext context.Context, _ actions.Repository, workflowID int64, pageNumber int) (actions.RunsPage, error) {
	source.mutex.Lock()
	source.requestedPages[workflowID] = append(source.requestedPages[workflowID], pageNumber)
	workflowPages := source.pages[workflowID]
	source.mutex.Unlock()

	if pageNumber < 1 || pageNumber > len(workflowPages) {
		return actions.RunsPage{}, fmt.Errorf(unexpectedPageTemplateConstant, pageNumber, workflowID)
	}

	page := workflowPages[pageNumber-1]
	if page.blockUntil {
		<-executionContext.Done()
		return actions.RunsPage{}, executionContext.Err()
	}
	if page.err != nil {
		return actions.RunsPage{}, page.err
	}
	return actions.RunsPage{Runs: page.runs, LinkHeader: page.linkHeader}, nil
}

func (source *fakeRunSource) pagesRequested(workflowID int64) []int {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	return append([]int(nil), source.requestedPages[workflowID]...)
}

type fakeTimingSource struct {
	failures        map[int64]error
	delays          map[int64]time.Duration
	inFlight        atomic.Int32
	maximumInFlight atomic.Int32
	completionMutex sync.Mutex
	completionOrder []int64
}

func (source *fakeTimingSource) FetchRunTiming(executionContext context.Context, _ actions.Repository, runID int64) (actions.Timing, error) {
	currentInFlight := source.inFlight.Add(1)
	defer source.inFlight.Add(-1)
	for {
		observedMaximum := source.maximumInFlight.Load()
		if currentInFlight <= observedMaximum || source.maximumInFlight.CompareAndSwap(observedMaximum, currentInFlight) {
			break
		}
	}

	if delay, delayed := source.delays[runID]; delayed {
		select {
		case <-time.After(delay):
		case <-executionContext.Done():
			return actions.Timing{}, executionContext.Err()
		}
	}

	source.completionMutex.Lock()
	source.completionOrder = append(source.completionOrder, runID)
	source.completionMutex.Unlock()

	if failure, failed := source.failures[runID]; failed {
		return actions.Timing{}, failure
	}
	return actions.Timing{
		Billable: map[string]actions.Milliseconds{
			actions.RunnerOperatingSystemUbuntu: {Value: runID * 1000, Present: true},
		},
		RunDuration: actions.Milliseconds{Value: runID * 10, Present: true},
	}, nil
}

type recordingProgress struct {
	mutex      sync.Mutex
	started    []string
	totals     []int
	increments int
	finished   int
}

func (progress *recordingProgress) Start(name string, total int) {
	progress.mutex.Lock()
	defer progress.mutex.Unlock()
	progress.started = append(progress.started, name)
	progress.totals = append(progress.totals, total)
}

func (progress *recordingProgress) Increment() {
	progress.mutex.Lock()
	defer progress.mutex.Unlock()
	progress.increments++
}

func (progress *recordingProgress) Finish() {
	progress.mutex.Lock()
	defer progress.mutex.Unlock()
	progress.finished++
}

func buildRun(runID int64, createdAt string) actions.WorkflowRun {
	return actions.WorkflowRun{ID: runID, CreatedAt: createdAt, Status: "completed"}
}

func lastPageLink(lastPage int) string {
	return fmt.Sprintf(lastPageLinkTemplateConstant, lastPage)
}
