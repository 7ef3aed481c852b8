package collector_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/actions-timing/internal/actions"
	"github.com/tyemirov/actions-timing/internal/collector"
	"github.com/tyemirov/actions-timing/internal/window"
)

const testWorkflowIdentifier = int64(7)

var testRepository = actions.Repository{Owner: "octo", Name: "widgets"}

func buildTestWindow(testingInstance *testing.T) window.Window {
	testingInstance.Helper()
	dateWindow, windowError := window.ParseWindow("2024-01-02", "2024-01-04")
	require.NoError(testingInstance, windowError)
	return dateWindow
}

func runIdentifiers(runs []actions.WorkflowRun) []int64 {
	identifiers := make([]int64, 0, len(runs))
	for _, run := range runs {
		identifiers = append(identifiers, run.ID)
	}
	return identifiers
}

func TestPaginatorCollectRuns(testingInstance *testing.T) {
	testingInstance.Parallel()

	testCases := []struct {
		name                   string
		pages                  []fakeRunPage
		deduplicateRuns        bool
		expectedIdentifiers    []int64
		expectedRequestedPages []int
	}{
		{
			name: "single_page_keeps_in_window_run",
			pages: []fakeRunPage{
				{runs: []actions.WorkflowRun{
					buildRun(5, "2024-01-05T00:00:00Z"),
					buildRun(3, "2024-01-03T00:00:00Z"),
					buildRun(1, "2024-01-01T00:00:00Z"),
				}},
			},
			expectedIdentifiers:    []int64{3},
			expectedRequestedPages: []int{1},
		},
		{
			name: "absent_link_header_fetches_one_page",
			pages: []fakeRunPage{
				{runs: []actions.WorkflowRun{
					buildRun(4, "2024-01-04T00:00:00Z"),
					buildRun(3, "2024-01-03T00:00:00Z"),
					buildRun(2, "2024-01-02T00:00:00Z"),
				}},
			},
			expectedIdentifiers:    []int64{4, 3, 2},
			expectedRequestedPages: []int{1},
		},
		{
			name: "walks_every_page_when_boundary_not_reached",
			pages: []fakeRunPage{
				{linkHeader: lastPageLink(3), runs: []actions.WorkflowRun{buildRun(9, "2024-01-06T00:00:00Z"), buildRun(8, "2024-01-04T00:00:00Z")}},
				{runs: []actions.WorkflowRun{buildRun(7, "2024-01-03T12:00:00Z")}},
				{runs: []actions.WorkflowRun{buildRun(6, "2024-01-02T00:00:00Z")}},
			},
			expectedIdentifiers:    []int64{8, 7, 6},
			expectedRequestedPages: []int{1, 2, 3},
		},
		{
			name: "stops_after_page_reaching_boundary",
			pages: []fakeRunPage{
				{linkHeader: lastPageLink(4), runs: []actions.WorkflowRun{buildRun(9, "2024-01-04T00:00:00Z")}},
				{runs: []actions.WorkflowRun{buildRun(8, "2024-01-02T00:00:00Z"), buildRun(7, "2024-01-01T23:59:59Z")}},
				{runs: []actions.WorkflowRun{buildRun(6, "2024-01-03T00:00:00Z")}},
				{runs: []actions.WorkflowRun{buildRun(5, "2024-01-03T00:00:00Z")}},
			},
			expectedIdentifiers:    []int64{9, 8},
			expectedRequestedPages: []int{1, 2},
		},
		{
			name: "page_entirely_before_window_still_stops",
			pages: []fakeRunPage{
				{linkHeader: lastPageLink(3), runs: []actions.WorkflowRun{buildRun(9, "2024-01-10T00:00:00Z")}},
				{runs: []actions.WorkflowRun{buildRun(8, "2023-12-31T00:00:00Z")}},
				{runs: []actions.WorkflowRun{buildRun(7, "2024-01-03T00:00:00Z")}},
			},
			expectedIdentifiers:    []int64{},
			expectedRequestedPages: []int{1, 2},
		},
		{
			name: "overlapping_pages_are_deduplicated",
			pages: []fakeRunPage{
				{linkHeader: lastPageLink(2), runs: []actions.WorkflowRun{buildRun(4, "2024-01-04T00:00:00Z"), buildRun(3, "2024-01-03T00:00:00Z")}},
				{runs: []actions.WorkflowRun{buildRun(3, "2024-01-03T00:00:00Z"), buildRun(2, "2024-01-02T00:00:00Z")}},
			},
			deduplicateRuns:        true,
			expectedIdentifiers:    []int64{4, 3, 2},
			expectedRequestedPages: []int{1, 2},
		},
		{
			name: "overlapping_pages_kept_when_deduplication_disabled",
			pages: []fakeRunPage{
				{linkHeader: lastPageLink(2), runs: []actions.WorkflowRun{buildRun(4, "2024-01-04T00:00:00Z"), buildRun(3, "2024-01-03T00:00:00Z")}},
				{runs: []actions.WorkflowRun{buildRun(3, "2024-01-03T00:00:00Z"), buildRun(2, "2024-01-02T00:00:00Z")}},
			},
			expectedIdentifiers:    []int64{4, 3, 3, 2},
			expectedRequestedPages: []int{1, 2},
		},
		{
			name:                   "empty_first_page",
			pages:                  []fakeRunPage{{}},
			expectedIdentifiers:    []int64{},
			expectedRequestedPages: []int{1},
		},
	}

	for index := range testCases {
		testCase := testCases[index]

		testingInstance.Run(testCase.name, func(testingSubInstance *testing.T) {
			testingSubInstance.Parallel()

			runSource := newFakeRunSource(map[int64][]fakeRunPage{testWorkflowIdentifier: testCase.pages})
			paginator := collector.NewPaginator(zap.NewNop(), runSource, testRepository, nil, testCase.deduplicateRuns)

			runs, collectError := paginator.CollectRuns(context.Background(), testWorkflowIdentifier, buildTestWindow(testingSubInstance))
			require.NoError(testingSubInstance, collectError)
			require.Equal(testingSubInstance, testCase.expectedIdentifiers, runIdentifiers(runs))
			require.Equal(testingSubInstance, testCase.expectedRequestedPages, runSource.pagesRequested(testWorkflowIdentifier))
		})
	}
}

func TestPaginatorCollectRunsIsIdempotent(testingInstance *testing.T) {
	testingInstance.Parallel()

	runSource := newFakeRunSource(map[int64][]fakeRunPage{testWorkflowIdentifier: {
		{linkHeader: lastPageLink(2), runs: []actions.WorkflowRun{buildRun(4, "2024-01-04T00:00:00Z"), buildRun(3, "2024-01-03T00:00:00Z")}},
		{runs: []actions.WorkflowRun{buildRun(2, "2024-01-02T00:00:00Z"), buildRun(1, "2024-01-01T00:00:00Z")}},
	}})
	paginator := collector.NewPaginator(zap.NewNop(), runSource, testRepository, collector.NewRequestGate(1), true)
	dateWindow := buildTestWindow(testingInstance)

	firstRuns, firstError := paginator.CollectRuns(context.Background(), testWorkflowIdentifier, dateWindow)
	require.NoError(testingInstance, firstError)
	secondRuns, secondError := paginator.CollectRuns(context.Background(), testWorkflowIdentifier, dateWindow)
	require.NoError(testingInstance, secondError)
	require.Equal(testingInstance, firstRuns, secondRuns)
}

func TestPaginatorCollectRunsFailures(testingInstance *testing.T) {
	testingInstance.Parallel()

	pageFailure := errors.New("page unavailable")

	testCases := []struct {
		name          string
		pages         []fakeRunPage
		expectedError error
		expectedText  string
	}{
		{
			name:          "link_header_without_last_entry",
			pages:         []fakeRunPage{{linkHeader: `<https://api.github.com/x?page=2>; rel="next"`}},
			expectedError: actions.ErrLastPageMissing,
		},
		{
			name:          "first_page_failure",
			pages:         []fakeRunPage{{err: pageFailure}},
			expectedError: pageFailure,
			expectedText:  "unable to fetch page 1 of workflow 7 runs",
		},
		{
			name: "later_page_failure",
			pages: []fakeRunPage{
				{linkHeader: lastPageLink(2), runs: []actions.WorkflowRun{buildRun(4, "2024-01-04T00:00:00Z")}},
				{err: pageFailure},
			},
			expectedError: pageFailure,
			expectedText:  "unable to fetch page 2 of workflow 7 runs",
		},
		{
			name:          "unparseable_timestamp",
			pages:         []fakeRunPage{{runs: []actions.WorkflowRun{buildRun(4, "January 4th")}}},
			expectedError: actions.ErrInvalidTimestamp,
		},
	}

	for index := range testCases {
		testCase := testCases[index]

		testingInstance.Run(testCase.name, func(testingSubInstance *testing.T) {
			testingSubInstance.Parallel()

			runSource := newFakeRunSource(map[int64][]fakeRunPage{testWorkflowIdentifier: testCase.pages})
			paginator := collector.NewPaginator(nil, runSource, testRepository, nil, true)

			runs, collectError := paginator.CollectRuns(context.Background(), testWorkflowIdentifier, buildTestWindow(testingSubInstance))
			require.Nil(testingSubInstance, runs)
			require.ErrorIs(testingSubInstance, collectError, testCase.expectedError)
			if len(testCase.expectedText) > 0 {
				require.ErrorContains(testingSubInstance, collectError, testCase.expectedText)
			}
		})
	}
}
