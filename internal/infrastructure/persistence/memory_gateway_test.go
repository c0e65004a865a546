package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngoclaw/alger/internal/domain/entity"
	"github.com/ngoclaw/alger/internal/domain/repository"
)

func TestMemoryGatewayEnsureUserIsIdempotent(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()

	first, err := gw.EnsureUser(ctx, "admin", entity.User{ID: "u1", Roles: []string{"admin"}})
	require.NoError(t, err)

	second, err := gw.EnsureUser(ctx, "admin", entity.User{ID: "u2", Roles: []string{"operator"}})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"admin"}, second.Roles)
}

func TestMemoryGatewayExecutionLifecycle(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()

	exec := entity.Execution{ID: "e1", Status: entity.StatusQueued}
	_, err := gw.CreateExecution(ctx, exec)
	require.NoError(t, err)

	count, err := gw.CountActiveExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = gw.UpdateExecutionStatus(ctx, "e1", entity.StatusRunning, nil)
	require.NoError(t, err)

	err = gw.UpdateExecutionStatus(ctx, "e1", entity.StatusFinished, &repository.ExecutionOutput{File: "demo.json", Content: "{}"})
	require.NoError(t, err)

	got, err := gw.GetExecution(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFinished, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, "demo.json", got.OutputFile)

	count, err = gw.CountActiveExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryGatewayRejectsInvalidTransition(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()
	_, err := gw.CreateExecution(ctx, entity.Execution{ID: "e1", Status: entity.StatusFinished})
	require.NoError(t, err)

	err = gw.UpdateExecutionStatus(ctx, "e1", entity.StatusRunning, nil)
	assert.Error(t, err)
}

func TestMemoryGatewayPipelineUpsertAndList(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()

	_, err := gw.UpsertPipeline(ctx, entity.Pipeline{ID: "demo", Name: "Demo"})
	require.NoError(t, err)

	pipelines, err := gw.ListPipelines(ctx)
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "demo", pipelines[0].ID)
}
