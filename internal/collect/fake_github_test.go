package collect_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tyemirov/actions-timing/internal/actions"
)

const (
	testOwnerConstant            = "octo"
	testRepositoryConstant       = "widgets"
	testTokenConstant            = "test-token"
	testTokenEnvironmentConstant = "ACTIONS_TIMING_TEST_TOKEN"
)

type runsPageFixture struct {
	runs     []actions.WorkflowRun
	lastPage int
	failure  bool
}

type timingFixture struct {
	ubuntuMilliseconds int64
	delay              time.Duration
	failure            bool
}

type fakeGitHub struct {
	server      *httptest.Server
	workflows   []actions.Workflow
	runPages    map[int64][]runsPageFixture
	timings     map[int64]timingFixture
	mutex       sync.Mutex
	pageFetches map[int64][]int
	timingHits  int
}

func newFakeGitHub(testingInstance *testing.T, workflows []actions.Workflow, runPages map[int64][]runsPageFixture, timings map[int64]timingFixture) *fakeGitHub {
	testingInstance.Helper()

	github := &fakeGitHub{
		workflows:   workflows,
		runPages:    runPages,
		timings:     timings,
		pageFetches: make(map[int64][]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repository}/actions/workflows", github.handleWorkflows)
	mux.HandleFunc("GET /repos/{owner}/{repository}/actions/workflows/{workflowID}/runs", github.handleRuns)
	mux.HandleFunc("GET /repos/{owner}/{repository}/actions/runs/{runID}/timing", github.handleTiming)

	github.server = httptest.NewServer(github.authorize(mux))
	testingInstance.Cleanup(github.server.Close)
	return github
}

func (github *fakeGitHub) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, httpRequest *http.Request) {
		if httpRequest.Header.Get("Authorization") != "Bearer "+testTokenConstant {
			responseWriter.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(responseWriter, httpRequest)
	})
}

func (github *fakeGitHub) handleWorkflows(responseWriter http.ResponseWriter, httpRequest *http.Request) {
	if httpRequest.PathValue("owner") != testOwnerConstant || httpRequest.PathValue("repository") != testRepositoryConstant {
		responseWriter.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(responseWriter, map[string]any{"total_count": len(github.workflows), "workflows": github.workflows})
}

func (github *fakeGitHub) handleRuns(responseWriter http.ResponseWriter, httpRequest *http.Request) {
	workflowID, parseError := strconv.ParseInt(httpRequest.PathValue("workflowID"), 10, 64)
	if parseError != nil {
		responseWriter.WriteHeader(http.StatusBadRequest)
		return
	}
	pageNumber, pageError := strconv.Atoi(httpRequest.URL.Query().Get("page"))
	if pageError != nil {
		responseWriter.WriteHeader(http.StatusBadRequest)
		return
	}

	github.mutex.Lock()
	github.pageFetches[workflowID] = append(github.pageFetches[workflowID], pageNumber)
	github.mutex.Unlock()

	pages := github.runPages[workflowID]
	if pageNumber < 1 || pageNumber > len(pages) {
		writeJSON(responseWriter, map[string]any{"total_count": 0, "workflow_runs": []actions.WorkflowRun{}})
		return
	}

	page := pages[pageNumber-1]
	if page.failure {
		responseWriter.WriteHeader(http.StatusBadGateway)
		return
	}
	if page.lastPage > 0 {
		lastPageURL := fmt.Sprintf("%s%s?per_page=100&page=%d", github.server.URL, httpRequest.URL.Path, page.lastPage)
		nextPageURL := fmt.Sprintf("%s%s?per_page=100&page=%d", github.server.URL, httpRequest.URL.Path, pageNumber+1)
		responseWriter.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next", <%s>; rel="last"`, nextPageURL, lastPageURL))
	}
	writeJSON(responseWriter, map[string]any{"total_count": len(page.runs), "workflow_runs": page.runs})
}

func (github *fakeGitHub) handleTiming(responseWriter http.ResponseWriter, httpRequest *http.Request) {
	runID, parseError := strconv.ParseInt(httpRequest.PathValue("runID"), 10, 64)
	if parseError != nil {
		responseWriter.WriteHeader(http.StatusBadRequest)
		return
	}

	github.mutex.Lock()
	github.timingHits++
	github.mutex.Unlock()

	fixture, found := github.timings[runID]
	if !found {
		responseWriter.WriteHeader(http.StatusNotFound)
		return
	}
	if fixture.delay > 0 {
		time.Sleep(fixture.delay)
	}
	if fixture.failure {
		responseWriter.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(responseWriter, map[string]any{
		"billable": map[string]any{
			actions.RunnerOperatingSystemUbuntu: map[string]any{"total_ms": fixture.ubuntuMilliseconds},
		},
		"run_duration_ms": fixture.ubuntuMilliseconds + 5,
	})
}

func (github *fakeGitHub) fetchedPages(workflowID int64) []int {
	github.mutex.Lock()
	defer github.mutex.Unlock()
	return append([]int(nil), github.pageFetches[workflowID]...)
}

func writeJSON(responseWriter http.ResponseWriter, payload any) {
	responseWriter.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(responseWriter).Encode(payload)
}

func buildRun(runID int64, createdAt string) actions.WorkflowRun {
	return actions.WorkflowRun{ID: runID, CreatedAt: createdAt, Status: "completed"}
}

// scenarioFixtures describes four workflows: a date-window filter, a single page without pagination
// metadata, a dropped timing among five runs, and a workflow with nothing inside the window.
func scenarioFixtures() ([]actions.Workflow, map[int64][]runsPageFixture, map[int64]timingFixture) {
	workflows := []actions.Workflow{
		{ID: 101, Name: "Filter"},
		{ID: 202, Name: "Single page"},
		{ID: 303, Name: "Dropped timing"},
		{ID: 404, Name: "Outside window"},
	}

	runPages := map[int64][]runsPageFixture{
		101: {
			{runs: []actions.WorkflowRun{
				buildRun(1005, "2024-01-05T00:00:00Z"),
				buildRun(1003, "2024-01-03T00:00:00Z"),
				buildRun(1001, "2024-01-01T00:00:00Z"),
			}, lastPage: 2},
			{runs: []actions.WorkflowRun{buildRun(1000, "2023-12-31T00:00:00Z")}},
		},
		202: {
			{runs: []actions.WorkflowRun{
				buildRun(2004, "2024-01-04T00:00:00Z"),
				buildRun(2002, "2024-01-02T00:00:00Z"),
			}},
		},
		303: {
			{runs: []actions.WorkflowRun{
				buildRun(3005, "2024-01-03T23:00:00Z"),
				buildRun(3004, "2024-01-03T20:00:00Z"),
				buildRun(3003, "2024-01-03T03:00:00Z"),
				buildRun(3002, "2024-01-02T02:00:00Z"),
				buildRun(3001, "2024-01-02T00:00:00Z"),
			}},
		},
		404: {
			{runs: []actions.WorkflowRun{buildRun(4001, "2023-11-01T00:00:00Z")}},
		},
	}

	timings := map[int64]timingFixture{
		1003: {ubuntuMilliseconds: 1003},
		2004: {ubuntuMilliseconds: 2004},
		2002: {ubuntuMilliseconds: 2002},
		3005: {ubuntuMilliseconds: 3005},
		3004: {ubuntuMilliseconds: 3004, delay: 40 * time.Millisecond},
		3003: {failure: true},
		3002: {ubuntuMilliseconds: 3002, delay: 20 * time.Millisecond},
		3001: {ubuntuMilliseconds: 3001},
	}

	return workflows, runPages, timings
}
