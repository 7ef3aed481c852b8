package actions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/actions-timing/internal/actions"
)

func TestWorkflowRunCreationTime(testingInstance *testing.T) {
	testingInstance.Parallel()

	validRun := actions.WorkflowRun{ID: 1, CreatedAt: "2024-01-03T10:15:00Z"}
	parsedTime, parseError := validRun.CreationTime()
	require.NoError(testingInstance, parseError)
	require.True(testingInstance, parsedTime.Equal(time.Date(2024, time.January, 3, 10, 15, 0, 0, time.UTC)))

	invalidRun := actions.WorkflowRun{ID: 2, CreatedAt: "yesterday"}
	_, invalidError := invalidRun.CreationTime()
	require.ErrorIs(testingInstance, invalidError, actions.ErrInvalidTimestamp)
}

func TestMillisecondsOrZero(testingInstance *testing.T) {
	testingInstance.Parallel()

	require.Equal(testingInstance, int64(0), actions.Milliseconds{}.OrZero())
	require.Equal(testingInstance, int64(0), actions.Milliseconds{Value: 0, Present: true}.OrZero())
	require.Equal(testingInstance, int64(1500), actions.Milliseconds{Value: 1500, Present: true}.OrZero())
}

func TestRepositoryFullName(testingInstance *testing.T) {
	testingInstance.Parallel()

	require.Equal(testingInstance, "octo/widgets", actions.Repository{Owner: "octo", Name: "widgets"}.FullName())
}
