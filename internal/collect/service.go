package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tyemirov/actions-timing/internal/actions"
	"github.com/tyemirov/actions-timing/internal/collector"
	"github.com/tyemirov/actions-timing/internal/credentials"
	"github.com/tyemirov/actions-timing/internal/report"
	"github.com/tyemirov/actions-timing/internal/utils"
	"github.com/tyemirov/actions-timing/internal/window"
)

const (
	sinkMissingMessageConstant              = "report sink must be provided"
	tokenResolutionErrorTemplateConstant    = "unable to resolve authentication token: %w"
	clientConstructionErrorTemplateConstant = "unable to construct GitHub Actions client: %w"
	workflowListingErrorTemplateConstant    = "unable to list workflows of %s: %w"
	timingCollectionErrorTemplateConstant   = "unable to collect timings of workflow %d (%s): %w"
	reportWriteErrorTemplateConstant        = "unable to write report of workflow %d (%s): %w"
	collectionStartedMessageConstant        = "Started collection"
	collectionFinishedMessageConstant       = "Finished collection"
	workflowsListedMessageConstant          = "Listed workflows"
	collectionIdentifierLogFieldConstant    = "collection_id"
	repositoryLogFieldConstant              = "repository"
	windowLogFieldConstant                  = "window"
	workflowCountLogFieldConstant           = "workflow_count"
	runCountLogFieldConstant                = "run_count"
	rowCountLogFieldConstant                = "row_count"
	reportCountLogFieldConstant             = "report_count"
	droppedTimingCountLogFieldConstant      = "dropped_timing_count"
)

// Options describes a single collection.
type Options struct {
	Repository  actions.Repository
	Window      window.Window
	TokenSource credentials.TokenSourceConfiguration
	BaseURL     string
	PageSize    int
	Collector   collector.Configuration
}

// Result summarizes a completed collection.
type Result struct {
	CollectionID   string
	Workflows      int
	Runs           int
	Rows           int
	Reports        int
	DroppedTimings int
}

// Service runs collections against the GitHub Actions API and hands each workflow summary to a sink.
type Service struct {
	logger          *zap.Logger
	httpClient      actions.HTTPClient
	tokenResolver   credentials.TokenResolver
	sink            report.Sink
	progress        collector.ProgressReporter
	contextAccessor utils.CommandContextAccessor
}

// NewService constructs a Service. Nil logger, token resolver and progress fall back to defaults;
// a nil HTTP client means http.DefaultClient.
func NewService(logger *zap.Logger, httpClient actions.HTTPClient, tokenResolver credentials.TokenResolver, sink report.Sink, progress collector.ProgressReporter) (*Service, error) {
	if sink == nil {
		return nil, errors.New(sinkMissingMessageConstant)
	}

	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}

	resolvedTokenResolver := tokenResolver
	if resolvedTokenResolver == nil {
		resolvedTokenResolver = credentials.NewTokenResolver(nil, nil)
	}

	resolvedProgress := progress
	if resolvedProgress == nil {
		resolvedProgress = collector.NopProgress{}
	}

	return &Service{
		logger:          resolvedLogger,
		httpClient:      httpClient,
		tokenResolver:   resolvedTokenResolver,
		sink:            sink,
		progress:        resolvedProgress,
		contextAccessor: utils.NewCommandContextAccessor(),
	}, nil
}

// Execute lists the repository's workflows, collects every run list inside the window, and then,
// workflow by workflow in listing order, collects timings and writes the joined summary.
// Any fatal error stops the collection before further reports are written.
func (service *Service) Execute(executionContext context.Context, options Options) (Result, error) {
	collectionIdentifier, found := service.contextAccessor.CollectionIdentifier(executionContext)
	if !found {
		collectionIdentifier = uuid.NewString()
	}
	logger := service.logger.With(zap.String(collectionIdentifierLogFieldConstant, collectionIdentifier))
	result := Result{CollectionID: collectionIdentifier}

	token, tokenError := service.tokenResolver.ResolveToken(executionContext, options.TokenSource)
	if tokenError != nil {
		return result, fmt.Errorf(tokenResolutionErrorTemplateConstant, tokenError)
	}

	client, clientError := actions.NewService(logger, service.httpClient, actions.ServiceConfiguration{
		BaseURL:  options.BaseURL,
		PageSize: options.PageSize,
		Token:    token,
	})
	if clientError != nil {
		return result, fmt.Errorf(clientConstructionErrorTemplateConstant, clientError)
	}

	logger.Info(
		collectionStartedMessageConstant,
		zap.String(repositoryLogFieldConstant, options.Repository.FullName()),
		zap.String(windowLogFieldConstant, options.Window.String()),
	)

	workflows, listError := client.ListWorkflows(executionContext, options.Repository)
	if listError != nil {
		return result, fmt.Errorf(workflowListingErrorTemplateConstant, options.Repository.FullName(), listError)
	}
	result.Workflows = len(workflows)
	logger.Debug(workflowsListedMessageConstant, zap.Int(workflowCountLogFieldConstant, len(workflows)))

	timingCollector := collector.NewCollector(logger, options.Repository, client, client, options.Collector, service.progress)

	runLists, runListError := timingCollector.CollectRunLists(executionContext, workflows, options.Window)
	if runListError != nil {
		return result, runListError
	}

	for _, workflowRuns := range runLists {
		result.Runs += len(workflowRuns.Runs)

		batch, timingError := timingCollector.CollectTimings(executionContext, workflowRuns.Workflow, workflowRuns.Runs)
		result.DroppedTimings += batch.Failures
		if timingError != nil {
			return result, fmt.Errorf(timingCollectionErrorTemplateConstant, workflowRuns.Workflow.ID, workflowRuns.Workflow.Name, timingError)
		}

		summary := report.Assemble(options.Repository, workflowRuns.Workflow, workflowRuns.Runs, batch.Timings)
		if writeError := service.sink.Write(executionContext, summary); writeError != nil {
			return result, fmt.Errorf(reportWriteErrorTemplateConstant, workflowRuns.Workflow.ID, workflowRuns.Workflow.Name, writeError)
		}
		if !summary.Empty() {
			result.Reports++
			result.Rows += len(summary.Rows)
		}
	}

	logger.Info(
		collectionFinishedMessageConstant,
		zap.Int(workflowCountLogFieldConstant, result.Workflows),
		zap.Int(runCountLogFieldConstant, result.Runs),
		zap.Int(rowCountLogFieldConstant, result.Rows),
		zap.Int(reportCountLogFieldConstant, result.Reports),
		zap.Int(droppedTimingCountLogFieldConstant, result.DroppedTimings),
	)

	return result, nil
}
