// Package tool exposes the query operations as named tools for agent
// platforms: a dispatcher for invocations and a startup publisher that
// announces the tool catalog.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/manak-ai/stratum/internal/model"
	"github.com/manak-ai/stratum/internal/service"
)

// Built-in tool IDs.
const (
	DocumentOverviewQuery   = "documentOverviewQuery"
	DocumentChunkQuery      = "documentChunkQuery"
	RepositoryOverviewQuery = "repositoryOverviewQuery"
	RepositoryChunkQuery    = "repositoryChunkQuery"
)

// Handler executes one tool call.
type Handler func(ctx context.Context, req model.QueryRequest) (any, error)

// Registry maps tool IDs to handlers. Handlers resolve their service
// facade per call, so the registry can be built before the models are
// warm.
type Registry struct {
	tools map[string]Handler
	order []model.ToolDescriptor
	log   *slog.Logger
}

func NewRegistry(container *service.Container, log *slog.Logger) *Registry {
	r := &Registry{tools: make(map[string]Handler), log: log}

	r.register(DocumentOverviewQuery, "Document overview query",
		"Semantic search over document overviews.",
		func(ctx context.Context, req model.QueryRequest) (any, error) {
			svc, err := container.Documents(ctx)
			if err != nil {
				return nil, err
			}
			return svc.OverviewQuery(ctx, req)
		})
	r.register(DocumentChunkQuery, "Document chunk query",
		"Semantic search over document chunks with reranking and summary.",
		func(ctx context.Context, req model.QueryRequest) (any, error) {
			svc, err := container.Documents(ctx)
			if err != nil {
				return nil, err
			}
			return svc.ChunkQuery(ctx, req)
		})
	r.register(RepositoryOverviewQuery, "Repository overview query",
		"Semantic search over repository overviews.",
		func(ctx context.Context, req model.QueryRequest) (any, error) {
			svc, err := container.Repositories(ctx)
			if err != nil {
				return nil, err
			}
			return svc.OverviewQuery(ctx, req)
		})
	r.register(RepositoryChunkQuery, "Repository chunk query",
		"Semantic search over repository chunks with reranking and summary.",
		func(ctx context.Context, req model.QueryRequest) (any, error) {
			svc, err := container.Repositories(ctx)
			if err != nil {
				return nil, err
			}
			return svc.ChunkQuery(ctx, req)
		})
	return r
}

func (r *Registry) register(id, name, description string, h Handler) {
	r.tools[id] = h
	r.order = append(r.order, model.ToolDescriptor{ToolID: id, Name: name, Description: description})
}

// Descriptors returns the tool catalog in registration order.
func (r *Registry) Descriptors() []model.ToolDescriptor {
	out := make([]model.ToolDescriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Invoke dispatches one tool call. Failures come back inside the
// response; Invoke itself never fails.
func (r *Registry) Invoke(ctx context.Context, req model.InvokeRequest) model.InvokeResponse {
	resp := model.InvokeResponse{ToolID: req.ToolID}
	if req.ToolID == "" {
		resp.Error = "toolId must not be empty"
		return resp
	}
	handler, ok := r.tools[req.ToolID]
	if !ok {
		resp.Error = "unknown tool " + req.ToolID
		return resp
	}

	query, err := coerceQueryRequest(req.Params)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	result, err := handler(ctx, query)
	if err != nil {
		r.log.Warn("tool invocation failed",
			slog.String("tool_id", req.ToolID), slog.String("error", err.Error()))
		resp.Error = err.Error()
		return resp
	}
	resp.Result = result
	return resp
}

// coerceQueryRequest lifts params["queryRequest"] into a QueryRequest.
// The round-trip through JSON keeps the dual-casing behavior of the
// ingress decoder.
func coerceQueryRequest(params map[string]any) (model.QueryRequest, error) {
	var req model.QueryRequest
	raw, ok := params["queryRequest"]
	if !ok {
		return req, fmt.Errorf("params.queryRequest is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return req, fmt.Errorf("params.queryRequest is not serializable: %w", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("params.queryRequest has invalid shape: %w", err)
	}
	return req, nil
}
