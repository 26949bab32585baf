package bootstrap

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"storage:open",
		"students:init-manager",
	}
	require.Len(t, steps, len(want))

	seen := map[string]struct{}{}
	for i, step := range steps {
		assert.Equal(t, want[i], step.ID)
		assert.NotNil(t, step.Execute, "step %s has no execute function", step.ID)
		for _, dep := range step.DependsOn {
			_, ok := seen[dep]
			assert.True(t, ok, "step %s depends on %s before it runs", step.ID, dep)
		}
		seen[step.ID] = struct{}{}
	}
}

func TestExecuteInitStepsRejectsUnmetDependency(t *testing.T) {
	steps := []initStep{
		{
			ID:        "b",
			DependsOn: []string{"a"},
			Execute:   func(context.Context, *appState) error { return nil },
		},
	}

	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindBootstrap))
}

func TestExecuteInitStepsWrapsPlainErrors(t *testing.T) {
	boom := stderrors.New("boom")
	steps := []initStep{
		{
			ID:      "a",
			Kind:    errors.KindStorage,
			Execute: func(context.Context, *appState) error { return boom },
		},
	}

	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStorage))
	assert.ErrorIs(t, err, boom)
}

func TestExecuteInitStepsStopsAtFirstFailure(t *testing.T) {
	ran := []string{}
	steps := []initStep{
		{
			ID: "a",
			Execute: func(context.Context, *appState) error {
				ran = append(ran, "a")
				return errors.New(errors.KindConfig, "a", "bad config")
			},
		},
		{
			ID:        "b",
			DependsOn: []string{"a"},
			Execute: func(context.Context, *appState) error {
				ran = append(ran, "b")
				return nil
			},
		},
	}

	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, ran)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}
