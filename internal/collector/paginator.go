package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tyemirov/actions-timing/internal/actions"
	"github.com/tyemirov/actions-timing/internal/window"
)

const (
	pageFetchErrorTemplateConstant     = "unable to fetch page %d of workflow %d runs: %w"
	pageCountErrorTemplateConstant     = "unable to determine page count of workflow %d runs: %w"
	pageFilterErrorTemplateConstant    = "unable to filter page %d of workflow %d runs: %w"
	pageCollectedMessageConstant       = "Collected workflow runs page"
	duplicateRunSkippedMessageConstant = "Skipped duplicate workflow run"
	boundaryReachedMessageConstant     = "Reached window start, stopping pagination"
	workflowIdentifierLogFieldConstant = "workflow_id"
	runIdentifierLogFieldConstant      = "run_id"
	pageNumberLogFieldConstant         = "page_number"
	lastPageLogFieldConstant           = "last_page"
	keptRunsLogFieldConstant           = "kept_runs"
	pageRunsLogFieldConstant           = "page_runs"
)

// RunSource fetches one page of a workflow's runs.
type RunSource interface {
	FetchWorkflowRunsPage(executionContext context.Context, repository actions.Repository, workflowID int64, pageNumber int) (actions.RunsPage, error)
}

// Paginator walks a workflow's runs newest first and keeps the ones inside a window.
type Paginator struct {
	logger          *zap.Logger
	runSource       RunSource
	repository      actions.Repository
	requestGate     *RequestGate
	deduplicateRuns bool
}

// NewPaginator constructs a Paginator. A nil gate admits every request.
func NewPaginator(logger *zap.Logger, runSource RunSource, repository actions.Repository, requestGate *RequestGate, deduplicateRuns bool) *Paginator {
	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}
	return &Paginator{
		logger:          resolvedLogger,
		runSource:       runSource,
		repository:      repository,
		requestGate:     requestGate,
		deduplicateRuns: deduplicateRuns,
	}
}

// CollectRuns returns the workflow's runs inside the window in provider order. Pages are fetched
// sequentially; fetching stops after the first page holding a run older than the window start.
func (paginator *Paginator) CollectRuns(executionContext context.Context, workflowID int64, dateWindow window.Window) ([]actions.WorkflowRun, error) {
	currentPage, firstPageError := paginator.fetchPage(executionContext, workflowID, 1)
	if firstPageError != nil {
		return nil, firstPageError
	}

	lastPage, lastPageError := actions.ParseLastPage(currentPage.LinkHeader)
	if lastPageError != nil {
		return nil, fmt.Errorf(pageCountErrorTemplateConstant, workflowID, lastPageError)
	}

	collectedRuns := make([]actions.WorkflowRun, 0, len(currentPage.Runs))
	seenRunIdentifiers := make(map[int64]struct{})

	for pageNumber := 1; ; pageNumber++ {
		if pageNumber > 1 {
			nextPage, pageError := paginator.fetchPage(executionContext, workflowID, pageNumber)
			if pageError != nil {
				return nil, pageError
			}
			currentPage = nextPage
		}

		keptRuns, boundaryReached, filterError := window.Filter(currentPage.Runs, dateWindow)
		if filterError != nil {
			return nil, fmt.Errorf(pageFilterErrorTemplateConstant, pageNumber, workflowID, filterError)
		}

		for _, run := range keptRuns {
			if paginator.deduplicateRuns {
				if _, seen := seenRunIdentifiers[run.ID]; seen {
					paginator.logger.Debug(
						duplicateRunSkippedMessageConstant,
						zap.Int64(workflowIdentifierLogFieldConstant, workflowID),
						zap.Int64(runIdentifierLogFieldConstant, run.ID),
					)
					continue
				}
				seenRunIdentifiers[run.ID] = struct{}{}
			}
			collectedRuns = append(collectedRuns, run)
		}

		paginator.logger.Debug(
			pageCollectedMessageConstant,
			zap.Int64(workflowIdentifierLogFieldConstant, workflowID),
			zap.Int(pageNumberLogFieldConstant, pageNumber),
			zap.Int(lastPageLogFieldConstant, lastPage),
			zap.Int(pageRunsLogFieldConstant, len(currentPage.Runs)),
			zap.Int(keptRunsLogFieldConstant, len(keptRuns)),
		)

		if boundaryReached {
			paginator.logger.Debug(
				boundaryReachedMessageConstant,
				zap.Int64(workflowIdentifierLogFieldConstant, workflowID),
				zap.Int(pageNumberLogFieldConstant, pageNumber),
			)
			break
		}
		if pageNumber >= lastPage {
			break
		}
	}

	return collectedRuns, nil
}

func (paginator *Paginator) fetchPage(executionContext context.Context, workflowID int64, pageNumber int) (actions.RunsPage, error) {
	runsPage, fetchError := throughGate(executionContext, paginator.requestGate, func(gatedContext context.Context) (actions.RunsPage, error) {
		return paginator.runSource.FetchWorkflowRunsPage(gatedContext, paginator.repository, workflowID, pageNumber)
	})
	if fetchError != nil {
		return actions.RunsPage{}, fmt.Errorf(pageFetchErrorTemplateConstant, pageNumber, workflowID, fetchError)
	}
	return runsPage, nil
}
