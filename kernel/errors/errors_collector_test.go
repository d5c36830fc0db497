package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorsCollector(t *testing.T) {
	t.Run("basic collection", func(t *testing.T) {
		collector := ErrorsCollector{}

		// Collecting nil is ok
		require.False(t, collector.Collect(nil).CollectedFailure())
		require.False(t, collector.CollectedError())
		require.Nil(t, collector.ErrorOrNil())

		// Collected non-fatal errors
		require.False(
			t,
			collector.Collect(
				fmt.Errorf(
					"error wrapped: %w",
					NewAuthorizationDeniedError("op1", "no badge")),
			).CollectedFailure())

		require.True(t, collector.CollectedError())
		err := collector.ErrorOrNil()
		require.NotNil(t, err)
		require.ErrorContains(t, err, "op1")
		require.False(t, IsFailure(err))

		nonFatal, fatal := SplitErrorTypes(err)
		require.Nil(t, fatal)
		require.NotNil(t, nonFatal)
		require.Equal(t, ErrCodeAuthorizationDenied, nonFatal.Code())

		require.False(
			t,
			collector.Collect(
				NewInvalidInvocationErrorf("bad arg"),
			).CollectedFailure())

		require.True(t, collector.CollectedError())
		err = collector.ErrorOrNil()
		require.NotNil(t, err)
		require.ErrorContains(t, err, "error wrapped")
		require.ErrorContains(t, err, "op1")
		require.ErrorContains(t, err, "bad arg")
		require.False(t, IsFailure(err))

		nonFatal, fatal = SplitErrorTypes(err)
		require.Nil(t, fatal)
		require.NotNil(t, nonFatal)
		require.Equal(t, ErrCodeAuthorizationDenied, nonFatal.Code())

		// Collected fatal error
		require.True(
			t,
			collector.Collect(
				fmt.Errorf(
					"failure wrapped: %w",
					NewStorageFailure(fmt.Errorf("fatal1"))),
			).CollectedFailure())

		require.True(t, collector.CollectedError())
		err = collector.ErrorOrNil()
		require.NotNil(t, err)
		require.ErrorContains(t, err, "failure wrapped")
		require.ErrorContains(t, err, "fatal1")
		require.True(t, IsFailure(err))

		nonFatal, fatal = SplitErrorTypes(err)
		require.Nil(t, nonFatal)
		require.NotNil(t, fatal)
		require.Equal(t, FailureCodeStorageFailure, fatal.FailureCode())

		// Collecting a non-fatal error after a fatal error should still be
		// fatal
		require.True(
			t,
			collector.Collect(
				NewInvalidInvocationErrorf("op3"),
			).CollectedFailure())

		err = collector.ErrorOrNil()
		require.ErrorContains(t, err, "op3")
		require.True(t, IsFailure(err))
	})

	t.Run("failure only", func(t *testing.T) {
		collector := ErrorsCollector{}

		require.True(
			t,
			collector.Collect(fmt.Errorf("fatal1")).CollectedFailure())

		require.True(t, collector.CollectedError())
		err := collector.ErrorOrNil()
		require.NotNil(t, err)
		require.ErrorContains(t, err, "fatal1")
		require.True(t, IsFailure(err))

		nonFatal, fatal := SplitErrorTypes(err)
		require.Nil(t, nonFatal)
		require.NotNil(t, fatal)
		require.Equal(t, FailureCodeUnknownFailure, fatal.FailureCode())
	})
}

func TestErrorsCollectorSingleError(t *testing.T) {
	collector := NewErrorsCollector()
	original := NewInvalidInvocationErrorf("bad arg")
	collector.Collect(original)

	err := collector.ErrorOrNil()
	require.Equal(t, original, err)
	require.NotContains(t, err.Error(), "1 error occurred")

	coded, failure := SplitErrorTypes(err)
	require.Nil(t, failure)
	require.Equal(t, ErrCodeInvalidInvocation, coded.Code())
	require.NotContains(t, coded.Error(), "error occurred")
}
