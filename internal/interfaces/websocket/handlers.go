package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ngoclaw/alger/internal/domain/dag"
	"github.com/ngoclaw/alger/internal/domain/entity"
	"github.com/ngoclaw/alger/internal/domain/graph"
	"github.com/ngoclaw/alger/internal/domain/repository"
	"github.com/ngoclaw/alger/internal/infrastructure/protocol"
)

func stringField(content map[string]any, key string) string {
	if v, ok := content[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func mapField(content map[string]any, key string) map[string]any {
	if v, ok := content[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func handleLogin(_ context.Context, deps *Deps, rc *RequestContext, _ *Dispatcher, frame *protocol.Frame) (int, map[string]any, func()) {
	ctx := context.Background()
	username := stringField(frame.Content, "username")
	password := stringField(frame.Content, "password")

	if username != deps.Username || password != deps.Password {
		_ = deps.Gateway.RecordLoginAttempt(ctx, username, false)
		return protocol.StatusLoginError, map[string]any{"error": "invalid credentials"}, nil
	}

	user, err := deps.Gateway.EnsureUser(ctx, username, entity.User{
		ID:    uuid.NewString(),
		Roles: []string{"admin", "operator"},
	})
	if err != nil {
		return protocol.StatusLoginError, map[string]any{"error": err.Error()}, nil
	}
	_ = deps.Gateway.RecordLoginAttempt(ctx, username, true)
	_ = deps.Gateway.RecordUserAction(ctx, user.ID, "login", map[string]any{"username": username})

	return protocol.StatusLoginOK, map[string]any{"user": userToContent(user)}, nil
}

func handleGetUserData(_ context.Context, deps *Deps, _ *RequestContext, _ *Dispatcher, frame *protocol.Frame) (int, map[string]any, func()) {
	ctx := context.Background()
	userID := stringField(frame.Content, "userId")
	user, err := deps.Gateway.GetUser(ctx, userID)
	if err != nil {
		return protocol.StatusUserDataError, map[string]any{"error": err.Error()}, nil
	}
	return protocol.StatusUserDataOK, map[string]any{"user": userToContent(user)}, nil
}

func handleListPipelines(_ context.Context, deps *Deps, _ *RequestContext, _ *Dispatcher, _ *protocol.Frame) (int, map[string]any, func()) {
	ctx := context.Background()
	pipelines, err := deps.Gateway.ListPipelines(ctx)
	if err != nil {
		return protocol.StatusPipelineListError, map[string]any{"error": err.Error()}, nil
	}
	list := make([]map[string]any, 0, len(pipelines))
	for _, p := range pipelines {
		list = append(list, map[string]any{
			"id": p.ID, "name": p.Name, "description": p.Description,
		})
	}
	return protocol.StatusPipelineListOK, map[string]any{"pipelines": list}, nil
}

// checkAdmission implements spec §4.6's pre-dispatch gating, in order.
func checkAdmission(ctx context.Context, deps *Deps) (int, map[string]any, bool) {
	if deps.State.MaintenanceMode {
		return protocol.StatusMaintenanceMode, map[string]any{"error": "maintenance mode"}, false
	}
	if deps.State.ExecutionsHalted {
		return protocol.StatusExecutionsHalted, map[string]any{"error": "executions halted"}, false
	}
	active, err := deps.Gateway.CountActiveExecutions(ctx)
	if err != nil {
		return protocol.StatusExecuteDBError, map[string]any{"error": err.Error()}, false
	}
	if active >= deps.State.MaxConcurrentExecutions {
		return protocol.StatusTooManyExecutions, map[string]any{"activeExecutions": active}, false
	}
	return 0, nil, true
}

func handleExecuteFromDB(ctx context.Context, deps *Deps, rc *RequestContext, dispatcher *Dispatcher, frame *protocol.Frame) (int, map[string]any, func()) {
	if code, content, ok := checkAdmission(ctx, deps); !ok {
		return code, content, nil
	}

	pipelineID := stringField(frame.Content, "pipelineId")
	pipeline, err := deps.Gateway.GetPipeline(ctx, pipelineID)
	if err != nil {
		return protocol.StatusExecuteDBError, map[string]any{"error": err.Error()}, nil
	}

	canonical, err := graph.Normalize(pipeline.FullGraph)
	if err != nil {
		return protocol.StatusExecuteDBError, map[string]any{"error": err.Error()}, nil
	}

	execution := entity.Execution{
		ID:          uuid.NewString(),
		PipelineID:  pipeline.ID,
		Source:      entity.SourceDB,
		Graph:       pipeline.FullGraph,
		Params:      mapField(frame.Content, "params"),
		Status:      entity.StatusQueued,
		RequestedBy: rc.UserID,
		StartedAt:   time.Now().UTC(),
	}
	if _, err := deps.Gateway.CreateExecution(ctx, execution); err != nil {
		return protocol.StatusExecuteDBError, map[string]any{"error": err.Error()}, nil
	}

	strategy := dag.Strategy(stringField(frame.Content, "strategy"))
	if strategy == "" {
		strategy = dag.StrategyKahn
	}

	task := func() {
		runExecution(deps, dispatcher, rc, frame.ID, execution.ID, pipeline.ID, canonical, strategy)
	}

	return protocol.StatusExecuteDBOK, map[string]any{
		"executionId": execution.ID,
		"status":      "pipeline-execution-started",
	}, task
}

func handleExecuteFromPayload(ctx context.Context, deps *Deps, rc *RequestContext, dispatcher *Dispatcher, frame *protocol.Frame) (int, map[string]any, func()) {
	if code, content, ok := checkAdmission(ctx, deps); !ok {
		return code, content, nil
	}

	rawGraph := mapField(frame.Content, "graph")
	if rawGraph == nil {
		return protocol.StatusExecutePayloadError, map[string]any{"error": "missing graph"}, nil
	}
	canonical, err := graph.Normalize(rawGraph)
	if err != nil {
		return protocol.StatusExecutePayloadError, map[string]any{"error": err.Error()}, nil
	}

	execution := entity.Execution{
		ID:          uuid.NewString(),
		Source:      entity.SourcePayload,
		Graph:       rawGraph,
		Params:      mapField(frame.Content, "params"),
		Status:      entity.StatusQueued,
		RequestedBy: rc.UserID,
		StartedAt:   time.Now().UTC(),
	}
	if _, err := deps.Gateway.CreateExecution(ctx, execution); err != nil {
		return protocol.StatusExecutePayloadError, map[string]any{"error": err.Error()}, nil
	}

	strategy := dag.Strategy(stringField(frame.Content, "strategy"))
	if strategy == "" {
		strategy = dag.StrategyKahn
	}

	task := func() {
		runExecution(deps, dispatcher, rc, frame.ID, execution.ID, "", canonical, strategy)
	}

	return protocol.StatusExecutePayloadOK, map[string]any{
		"executionId": execution.ID,
		"status":      "pipeline-execution-started",
	}, task
}

func handleStopExecution(ctx context.Context, deps *Deps, _ *RequestContext, _ *Dispatcher, frame *protocol.Frame) (int, map[string]any, func()) {
	executionID := stringField(frame.Content, "executionId")
	err := deps.Gateway.UpdateExecutionStatus(ctx, executionID, entity.StatusStopped, nil)
	if err == nil {
		return protocol.StatusStopOK, map[string]any{"executionId": executionID, "status": "stopped"}, nil
	}

	// Stopping an execution that already reached a terminal state is an
	// idempotent no-op, not an error (spec §4.6): report it as stopped
	// rather than surfacing the status-machine's invalid-transition guard.
	if errors.Is(err, entity.ErrInvalidStatusTransition) {
		if existing, getErr := deps.Gateway.GetExecution(ctx, executionID); getErr == nil && existing.Status.IsTerminal() {
			return protocol.StatusStopOK, map[string]any{"executionId": executionID, "status": "stopped"}, nil
		}
	}
	return protocol.StatusStopError, map[string]any{"error": err.Error()}, nil
}

func handleRequestOutput(ctx context.Context, deps *Deps, _ *RequestContext, _ *Dispatcher, frame *protocol.Frame) (int, map[string]any, func()) {
	executionID := stringField(frame.Content, "executionId")
	execution, err := deps.Gateway.GetExecution(ctx, executionID)
	if err != nil {
		return protocol.StatusPipelineFinishedError, map[string]any{"error": err.Error()}, nil
	}

	switch execution.Status {
	case entity.StatusFinished:
		var decoded map[string]any
		_ = json.Unmarshal([]byte(execution.OutputContent), &decoded)
		return protocol.StatusPipelineFinishedOK, map[string]any{
			"executionId": execution.ID,
			"file":        execution.OutputFile,
			"content":     decoded,
		}, nil
	case entity.StatusFailed:
		var decoded map[string]any
		_ = json.Unmarshal([]byte(execution.OutputContent), &decoded)
		return protocol.StatusPipelineFinishedError, decoded, nil
	case entity.StatusRunning, entity.StatusQueued:
		return protocol.StatusPipelineFinishedError, map[string]any{"error": "execution is still running"}, nil
	default:
		return protocol.StatusPipelineFinishedError, map[string]any{"error": "execution is stopped"}, nil
	}
}

// runExecution drives the DAG engine off the I/O thread (spec §4.6,
// §5). It must never panic the connection's goroutine tree, hence it is
// always launched through pkg/safego.Go by the caller.
func runExecution(deps *Deps, dispatcher *Dispatcher, rc *RequestContext, requestID int, executionID, pipelineID string, canonical dagGraph, strategy dag.Strategy) {
	ctx := context.Background()
	start := time.Now()

	_ = deps.Gateway.UpdateExecutionStatus(ctx, executionID, entity.StatusRunning, nil)

	order := 0
	observer := dag.ObserverFunc(func(event dag.NodeEvent) {
		order++
		content := map[string]any{
			"executionId": executionID,
			"nodeId":      event.NodeID,
			"nodeKind":    event.Node.Kind,
			"durationMs":  event.Duration.Milliseconds(),
			"predecessors": event.Predecessors,
			"order":       order,
		}
		if pipelineID != "" {
			content["pipelineId"] = pipelineID
		}
		if event.Err != nil {
			content["status"] = "error"
			content["error"] = event.Err.Error()
			_ = dispatcher.Send(requestID, protocol.StatusNodeError, content)
			return
		}
		content["status"] = "success"
		_ = dispatcher.Send(requestID, protocol.StatusNodeSuccess, content)
	})

	result, err := deps.Engine.Execute(ctx, canonical, strategy, observer)
	duration := time.Since(start)

	if err != nil {
		summary := map[string]any{"error": err.Error()}
		summaryJSON, _ := json.Marshal(summary)
		_ = deps.Gateway.UpdateExecutionStatus(ctx, executionID, entity.StatusFailed, &repository.ExecutionOutput{
			File: executionID + ".json", Content: string(summaryJSON),
		})
		_ = deps.Gateway.LogError(ctx, entity.ErrorLog{
			ExecutionID: executionID, Severity: "error", Message: err.Error(),
		})
		content := map[string]any{
			"executionId": executionID,
			"status":      "error",
			"error":       err.Error(),
			"durationMs":  duration.Milliseconds(),
			"strategy":    strategy.Label(),
		}
		if pipelineID != "" {
			content["pipelineId"] = pipelineID
		}
		_ = dispatcher.Send(requestID, protocol.StatusPipelineFinishedError, content)
		return
	}

	summary := summarizeExecution(result, strategy)
	summaryJSON, _ := json.Marshal(summary)
	_ = deps.Gateway.UpdateExecutionStatus(ctx, executionID, entity.StatusFinished, &repository.ExecutionOutput{
		File: executionID + ".json", Content: string(summaryJSON),
	})
	_ = deps.Gateway.AddExecutionEvent(ctx, entity.ExecutionEvent{
		ExecutionID: executionID, EventType: "summary", Description: "execution finished", Payload: summary,
	})

	content := map[string]any{
		"executionId": executionID,
		"status":      "success",
		"summary":     summary,
		"durationMs":  duration.Milliseconds(),
		"strategy":    strategy.Label(),
	}
	if pipelineID != "" {
		content["pipelineId"] = pipelineID
	}
	_ = dispatcher.Send(requestID, protocol.StatusPipelineFinishedOK, content)
}

// summarizeExecution mirrors original_source's dag_runner.summarize_execution:
// {strategy, order, sources, sinks}, with sink outputs described via the
// tagged-sum encoding from spec §9.
func summarizeExecution(result *dag.Result, strategy dag.Strategy) map[string]any {
	sinks := make(map[string]any, len(result.Sinks))
	for _, id := range result.Sinks {
		sinks[id] = dag.DescribeValue(result.Outputs[id])
	}
	return map[string]any{
		"strategy": strategy.Label(),
		"order":    result.Order,
		"sources":  result.Sources,
		"sinks":    sinks,
	}
}

func userToContent(u *entity.User) map[string]any {
	return map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"displayName": u.DisplayName,
		"email":       u.Email,
		"roles":       u.Roles,
	}
}

// dagGraph is a local alias kept for readability at call sites above.
type dagGraph = dag.Graph
