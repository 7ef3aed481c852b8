package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultBaseURLConstant                 = "https://api.github.com"
	defaultPageSizeConstant                = 100
	maximumPageSizeConstant                = 100
	acceptHeaderNameConstant               = "Accept"
	acceptHeaderValueConstant              = "application/vnd.github+json"
	authorizationHeaderNameConstant        = "Authorization"
	bearerTokenTemplateConstant            = "Bearer %s"
	apiVersionHeaderNameConstant           = "X-GitHub-Api-Version"
	apiVersionHeaderValueConstant          = "2022-11-28"
	linkHeaderNameConstant                 = "Link"
	perPageQueryParameterNameConstant      = "per_page"
	pageQueryParameterNameConstant         = "page"
	reposPathSegmentConstant               = "repos"
	actionsPathSegmentConstant             = "actions"
	workflowsPathSegmentConstant           = "workflows"
	runsPathSegmentConstant                = "runs"
	timingPathSegmentConstant              = "timing"
	requestCreationErrorTemplateConstant   = "unable to create %s request for %s: %w"
	requestExecutionErrorTemplateConstant  = "request execution failed: %w"
	unexpectedStatusTemplateConstant       = "unexpected status code %d for %s %s: %s"
	responseDecodeErrorTemplateConstant    = "unable to decode %s: %w"
	paginationErrorTemplateConstant        = "unable to paginate %s: %w"
	workflowsResourceNameConstant          = "workflows"
	workflowRunsResourceNameConstant       = "workflow runs"
	runTimingResourceNameConstant          = "run timing"
	tokenMissingErrorMessageConstant       = "authentication token must be provided"
	ownerMissingErrorMessageConstant       = "repository owner must be provided"
	repositoryMissingErrorMessageConstant  = "repository name must be provided"
	invalidPageNumberTemplateConstant      = "page number must be positive, got %d"
	requestIssuedMessageConstant           = "Issued GitHub Actions API request"
	workflowsPageMessageConstant           = "Fetched workflows page"
	runsPageMessageConstant                = "Fetched workflow runs page"
	timingFetchedMessageConstant           = "Fetched workflow run timing"
	methodLogFieldNameConstant             = "method"
	urlLogFieldNameConstant                = "url"
	statusCodeLogFieldNameConstant         = "status_code"
	repositoryLogFieldNameConstant         = "repository"
	workflowIdentifierLogFieldNameConstant = "workflow_id"
	runIdentifierLogFieldNameConstant      = "run_id"
	pageNumberLogFieldNameConstant         = "page_number"
	lastPageLogFieldNameConstant           = "last_page"
	recordCountLogFieldNameConstant        = "record_count"
)

// HTTPClient abstracts the Do method of http.Client for easier testing.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ServiceConfiguration specifies HTTP behavior for the GitHub Actions client.
type ServiceConfiguration struct {
	BaseURL  string
	PageSize int
	Token    string
}

// UnexpectedStatusError reports a response whose status code is not 200.
type UnexpectedStatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (statusError *UnexpectedStatusError) Error() string {
	return fmt.Sprintf(unexpectedStatusTemplateConstant, statusError.StatusCode, statusError.Method, statusError.URL, statusError.Body)
}

// Service reads workflows, workflow runs, and run timings from the GitHub Actions REST API.
// It is safe for concurrent use when the underlying HTTPClient is.
type Service struct {
	logger     *zap.Logger
	httpClient HTTPClient
	baseURL    string
	pageSize   int
	token      string
}

// NewService constructs a service with sane defaults.
func NewService(logger *zap.Logger, httpClient HTTPClient, configuration ServiceConfiguration) (*Service, error) {
	trimmedToken := strings.TrimSpace(configuration.Token)
	if len(trimmedToken) == 0 {
		return nil, errors.New(tokenMissingErrorMessageConstant)
	}

	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}

	resolvedClient := httpClient
	if resolvedClient == nil {
		resolvedClient = http.DefaultClient
	}

	resolvedBaseURL := strings.TrimSpace(configuration.BaseURL)
	if len(resolvedBaseURL) == 0 {
		resolvedBaseURL = defaultBaseURLConstant
	}
	if _, parseError := url.Parse(resolvedBaseURL); parseError != nil {
		return nil, parseError
	}

	resolvedPageSize := configuration.PageSize
	if resolvedPageSize <= 0 || resolvedPageSize > maximumPageSizeConstant {
		resolvedPageSize = defaultPageSizeConstant
	}

	return &Service{
		logger:     resolvedLogger,
		httpClient: resolvedClient,
		baseURL:    resolvedBaseURL,
		pageSize:   resolvedPageSize,
		token:      trimmedToken,
	}, nil
}

// ListWorkflows returns every workflow defined in the repository, following the Link header across pages.
func (service *Service) ListWorkflows(executionContext context.Context, repository Repository) ([]Workflow, error) {
	normalizedRepository, validationError := validateRepository(repository)
	if validationError != nil {
		return nil, validationError
	}

	var workflows []Workflow
	lastPage := 1
	for pageNumber := 1; pageNumber <= lastPage; pageNumber++ {
		requestURL, urlBuildError := service.buildURL(
			[]string{reposPathSegmentConstant, normalizedRepository.Owner, normalizedRepository.Name, actionsPathSegmentConstant, workflowsPathSegmentConstant},
			pageNumber,
		)
		if urlBuildError != nil {
			return nil, urlBuildError
		}

		var payload workflowsPayload
		responseHeader, fetchError := service.getJSON(executionContext, requestURL, workflowsResourceNameConstant, &payload)
		if fetchError != nil {
			return nil, fetchError
		}

		if pageNumber == 1 {
			parsedLastPage, parseError := ParseLastPage(responseHeader.Get(linkHeaderNameConstant))
			if parseError != nil {
				return nil, fmt.Errorf(paginationErrorTemplateConstant, workflowsResourceNameConstant, parseError)
			}
			lastPage = parsedLastPage
		}

		service.logger.Debug(
			workflowsPageMessageConstant,
			zap.String(repositoryLogFieldNameConstant, normalizedRepository.FullName()),
			zap.Int(pageNumberLogFieldNameConstant, pageNumber),
			zap.Int(lastPageLogFieldNameConstant, lastPage),
			zap.Int(recordCountLogFieldNameConstant, len(payload.Workflows)),
		)

		workflows = append(workflows, payload.Workflows...)
	}

	return workflows, nil
}

// FetchWorkflowRunsPage returns one page of runs for the workflow together with the raw Link header.
func (service *Service) FetchWorkflowRunsPage(executionContext context.Context, repository Repository, workflowID int64, pageNumber int) (RunsPage, error) {
	normalizedRepository, validationError := validateRepository(repository)
	if validationError != nil {
		return RunsPage{}, validationError
	}
	if pageNumber < 1 {
		return RunsPage{}, fmt.Errorf(invalidPageNumberTemplateConstant, pageNumber)
	}

	requestURL, urlBuildError := service.buildURL(
		[]string{
			reposPathSegmentConstant,
			normalizedRepository.Owner,
			normalizedRepository.Name,
			actionsPathSegmentConstant,
			workflowsPathSegmentConstant,
			strconv.FormatInt(workflowID, 10),
			runsPathSegmentConstant,
		},
		pageNumber,
	)
	if urlBuildError != nil {
		return RunsPage{}, urlBuildError
	}

	var payload workflowRunsPayload
	responseHeader, fetchError := service.getJSON(executionContext, requestURL, workflowRunsResourceNameConstant, &payload)
	if fetchError != nil {
		return RunsPage{}, fetchError
	}

	service.logger.Debug(
		runsPageMessageConstant,
		zap.String(repositoryLogFieldNameConstant, normalizedRepository.FullName()),
		zap.Int64(workflowIdentifierLogFieldNameConstant, workflowID),
		zap.Int(pageNumberLogFieldNameConstant, pageNumber),
		zap.Int(recordCountLogFieldNameConstant, len(payload.WorkflowRuns)),
	)

	return RunsPage{Runs: payload.WorkflowRuns, LinkHeader: responseHeader.Get(linkHeaderNameConstant)}, nil
}

// FetchRunTiming returns the billable and wall-clock durations of a workflow run.
func (service *Service) FetchRunTiming(executionContext context.Context, repository Repository, runID int64) (Timing, error) {
	normalizedRepository, validationError := validateRepository(repository)
	if validationError != nil {
		return Timing{}, validationError
	}

	requestURL, urlBuildError := service.buildURL(
		[]string{
			reposPathSegmentConstant,
			normalizedRepository.Owner,
			normalizedRepository.Name,
			actionsPathSegmentConstant,
			runsPathSegmentConstant,
			strconv.FormatInt(runID, 10),
			timingPathSegmentConstant,
		},
		0,
	)
	if urlBuildError != nil {
		return Timing{}, urlBuildError
	}

	var payload timingPayload
	if _, fetchError := service.getJSON(executionContext, requestURL, runTimingResourceNameConstant, &payload); fetchError != nil {
		return Timing{}, fetchError
	}

	service.logger.Debug(
		timingFetchedMessageConstant,
		zap.String(repositoryLogFieldNameConstant, normalizedRepository.FullName()),
		zap.Int64(runIdentifierLogFieldNameConstant, runID),
	)

	return payload.toTiming(runID), nil
}

func (service *Service) getJSON(executionContext context.Context, requestURL string, resourceName string, target any) (http.Header, error) {
	httpRequest, requestCreationError := http.NewRequestWithContext(executionContext, http.MethodGet, requestURL, nil)
	if requestCreationError != nil {
		return nil, fmt.Errorf(requestCreationErrorTemplateConstant, http.MethodGet, requestURL, requestCreationError)
	}

	httpRequest.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	httpRequest.Header.Set(authorizationHeaderNameConstant, fmt.Sprintf(bearerTokenTemplateConstant, service.token))
	httpRequest.Header.Set(apiVersionHeaderNameConstant, apiVersionHeaderValueConstant)

	httpResponse, requestError := service.httpClient.Do(httpRequest)
	if requestError != nil {
		return nil, fmt.Errorf(requestExecutionErrorTemplateConstant, requestError)
	}
	defer httpResponse.Body.Close()

	service.logger.Debug(
		requestIssuedMessageConstant,
		zap.String(methodLogFieldNameConstant, http.MethodGet),
		zap.String(urlLogFieldNameConstant, requestURL),
		zap.Int(statusCodeLogFieldNameConstant, httpResponse.StatusCode),
	)

	if httpResponse.StatusCode != http.StatusOK {
		responseBody, _ := io.ReadAll(httpResponse.Body)
		return nil, &UnexpectedStatusError{
			StatusCode: httpResponse.StatusCode,
			Method:     http.MethodGet,
			URL:        requestURL,
			Body:       strings.TrimSpace(string(responseBody)),
		}
	}

	if decodeError := json.NewDecoder(httpResponse.Body).Decode(target); decodeError != nil {
		return nil, fmt.Errorf(responseDecodeErrorTemplateConstant, resourceName, decodeError)
	}

	responseHeader := httpResponse.Header
	if responseHeader == nil {
		responseHeader = make(http.Header)
	}
	return responseHeader, nil
}

// buildURL joins escaped path segments onto the base URL. A positive page number adds pagination parameters.
func (service *Service) buildURL(pathSegments []string, pageNumber int) (string, error) {
	baseURL, parseError := url.Parse(service.baseURL)
	if parseError != nil {
		return "", parseError
	}

	escapedSegments := []string{strings.TrimSuffix(baseURL.Path, "/")}
	for _, segment := range pathSegments {
		escapedSegments = append(escapedSegments, url.PathEscape(segment))
	}
	baseURL.RawPath = strings.Join(escapedSegments, "/")
	unescapedPath, unescapeError := url.PathUnescape(baseURL.RawPath)
	if unescapeError != nil {
		return "", unescapeError
	}
	baseURL.Path = unescapedPath

	queryParameters := url.Values{}
	if pageNumber > 0 {
		queryParameters.Set(perPageQueryParameterNameConstant, strconv.Itoa(service.pageSize))
		queryParameters.Set(pageQueryParameterNameConstant, strconv.Itoa(pageNumber))
	}
	baseURL.RawQuery = queryParameters.Encode()

	return baseURL.String(), nil
}

func validateRepository(repository Repository) (Repository, error) {
	normalizedRepository := repository.normalized()
	if len(normalizedRepository.Owner) == 0 {
		return Repository{}, errors.New(ownerMissingErrorMessageConstant)
	}
	if len(normalizedRepository.Name) == 0 {
		return Repository{}, errors.New(repositoryMissingErrorMessageConstant)
	}
	return normalizedRepository, nil
}
