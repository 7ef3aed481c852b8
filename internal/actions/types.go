package actions

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// RunnerOperatingSystemUbuntu identifies billable time spent on Ubuntu runners.
	RunnerOperatingSystemUbuntu = "UBUNTU"
	// RunnerOperatingSystemMacOS identifies billable time spent on macOS runners.
	RunnerOperatingSystemMacOS = "MACOS"
	// RunnerOperatingSystemWindows identifies billable time spent on Windows runners.
	RunnerOperatingSystemWindows = "WINDOWS"

	invalidTimestampTemplateConstant   = "%w: run %d created_at %q: %v"
	repositoryFullNameTemplateConstant = "%s/%s"
)

// ErrInvalidTimestamp indicates a run whose creation timestamp is not RFC 3339.
var ErrInvalidTimestamp = errors.New("invalid run creation timestamp")

// Repository identifies a GitHub repository by owner and name.
type Repository struct {
	Owner string
	Name  string
}

// FullName returns the owner/name form of the repository.
func (repository Repository) FullName() string {
	return fmt.Sprintf(repositoryFullNameTemplateConstant, repository.Owner, repository.Name)
}

func (repository Repository) normalized() Repository {
	return Repository{
		Owner: strings.TrimSpace(repository.Owner),
		Name:  strings.TrimSpace(repository.Name),
	}
}

// Workflow describes a GitHub Actions workflow.
type Workflow struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// WorkflowRun describes a single workflow run. CreatedAt keeps the provider's original string.
type WorkflowRun struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
}

// CreationTime parses CreatedAt as an RFC 3339 timestamp.
func (run WorkflowRun) CreationTime() (time.Time, error) {
	parsedTime, parseError := time.Parse(time.RFC3339, strings.TrimSpace(run.CreatedAt))
	if parseError != nil {
		return time.Time{}, fmt.Errorf(invalidTimestampTemplateConstant, ErrInvalidTimestamp, run.ID, run.CreatedAt, parseError)
	}
	return parsedTime, nil
}

// RunsPage is one page of workflow runs. LinkHeader is the raw pagination header; only the first page's header advertises the last page.
type RunsPage struct {
	Runs       []WorkflowRun
	LinkHeader string
}

// Milliseconds is a duration reported by the provider. Present distinguishes an omitted metric from a reported zero.
type Milliseconds struct {
	Value   int64
	Present bool
}

// OrZero returns the reported value, or zero when the provider omitted the metric.
func (milliseconds Milliseconds) OrZero() int64 {
	if !milliseconds.Present {
		return 0
	}
	return milliseconds.Value
}

// Timing holds the billable and wall-clock durations of one workflow run.
type Timing struct {
	RunID       int64
	Billable    map[string]Milliseconds
	RunDuration Milliseconds
}

// BillableTotal returns the billable time for the runner operating system.
func (timing Timing) BillableTotal(operatingSystem string) Milliseconds {
	return timing.Billable[strings.ToUpper(strings.TrimSpace(operatingSystem))]
}

type workflowsPayload struct {
	TotalCount int        `json:"total_count"`
	Workflows  []Workflow `json:"workflows"`
}

type workflowRunsPayload struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

type timingPayload struct {
	Billable      map[string]billablePayload `json:"billable"`
	RunDurationMS *int64                     `json:"run_duration_ms"`
}

type billablePayload struct {
	TotalMS *int64 `json:"total_ms"`
}

func (payload timingPayload) toTiming(runID int64) Timing {
	billable := make(map[string]Milliseconds, len(payload.Billable))
	for operatingSystem, entry := range payload.Billable {
		billable[strings.ToUpper(operatingSystem)] = millisecondsFromPointer(entry.TotalMS)
	}
	return Timing{
		RunID:       runID,
		Billable:    billable,
		RunDuration: millisecondsFromPointer(payload.RunDurationMS),
	}
}

func millisecondsFromPointer(value *int64) Milliseconds {
	if value == nil {
		return Milliseconds{}
	}
	return Milliseconds{Value: *value, Present: true}
}
