package a2a

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdka2a "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/hupe1980/agentrt/core"
)

// DefaultTask is used when a message carries no "task" metadata.
const DefaultTask = "analyze"

// Service is the part of the runtime the executor needs.
type Service interface {
	Execute(ctx context.Context, req core.Request) (*core.Result, error)
	GetCapabilities() core.Descriptor
}

// Options configures the executor and the agent card.
type Options struct {
	DefaultTask string
	BaseURL     string
	Version     string
	Description string
}

// Executor implements a2asrv.AgentExecutor on top of a Service.
type Executor struct {
	svc  Service
	opts Options
}

// NewExecutor creates an executor for svc.
func NewExecutor(svc Service, optFns ...func(o *Options)) *Executor {
	opts := Options{DefaultTask: DefaultTask, Version: "1.0.0"}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{svc: svc, opts: opts}
}

// NewHandler returns the JSON-RPC endpoint serving svc.
func NewHandler(svc Service, optFns ...func(o *Options)) http.Handler {
	return a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(NewExecutor(svc, optFns...)))
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	if reqCtx.StoredTask == nil {
		event := sdka2a.NewStatusUpdateEvent(reqCtx, sdka2a.TaskStateSubmitted, nil)
		if err := queue.Write(ctx, event); err != nil {
			return fmt.Errorf("failed to write state submitted: %w", err)
		}
	}

	event := sdka2a.NewStatusUpdateEvent(reqCtx, sdka2a.TaskStateWorking, nil)
	if err := queue.Write(ctx, event); err != nil {
		return fmt.Errorf("failed to write state working: %w", err)
	}

	res, err := e.svc.Execute(ctx, RequestFromMessage(reqCtx.Message, e.opts.DefaultTask))
	if err != nil {
		return e.writeFailure(ctx, reqCtx, queue, err.Error())
	}

	msg := ResultMessage(res)
	msg.TaskID = reqCtx.TaskID
	msg.ContextID = reqCtx.ContextID

	final := sdka2a.NewStatusUpdateEvent(reqCtx, sdka2a.TaskStateCompleted, msg)
	final.Final = true

	if err := queue.Write(ctx, final); err != nil {
		return fmt.Errorf("failed to write state completed: %w", err)
	}

	return nil
}

// Cancel implements a2asrv.AgentExecutor. Analyses are short lived, so
// cancellation only records the terminal state.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	event := sdka2a.NewStatusUpdateEvent(reqCtx, sdka2a.TaskStateCanceled, nil)
	event.Final = true

	if err := queue.Write(ctx, event); err != nil {
		return fmt.Errorf("failed to write state canceled: %w", err)
	}

	return nil
}

func (e *Executor) writeFailure(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, errMsg string) error {
	msg := sdka2a.NewMessage(sdka2a.MessageRoleAgent, &sdka2a.TextPart{Text: errMsg})
	msg.TaskID = reqCtx.TaskID
	msg.ContextID = reqCtx.ContextID
	msg.Metadata = map[string]any{
		"error":     true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	event := sdka2a.NewStatusUpdateEvent(reqCtx, sdka2a.TaskStateFailed, msg)
	event.Final = true

	if err := queue.Write(ctx, event); err != nil {
		return fmt.Errorf("failed to write failure event: %w", err)
	}

	return nil
}

// RequestFromMessage maps an inbound message onto a core.Request.
func RequestFromMessage(msg *sdka2a.Message, defaultTask string) core.Request {
	req := core.Request{Task: defaultTask}
	if msg == nil {
		return req
	}

	if task, ok := msg.Metadata["task"].(string); ok && task != "" {
		req.Task = task
	}

	var texts []string

	for _, p := range msg.Parts {
		switch pt := p.(type) {
		case *sdka2a.DataPart:
			if req.Data == nil {
				req.Data = pt.Data
			}
		case sdka2a.DataPart:
			if req.Data == nil {
				req.Data = pt.Data
			}
		case *sdka2a.TextPart:
			texts = append(texts, pt.Text)
		case sdka2a.TextPart:
			texts = append(texts, pt.Text)
		}
	}

	if req.Data == nil && len(texts) > 0 {
		req.Data = strings.Join(texts, "\n")
	}

	return req
}

// ResultMessage renders a result as an agent message.
func ResultMessage(res *core.Result) *sdka2a.Message {
	data := map[string]any{
		"value":      res.Value,
		"confidence": res.Confidence,
	}

	if res.Reasoning != "" {
		data["reasoning"] = res.Reasoning
	}

	if len(res.Uncertainties) > 0 {
		data["uncertainties"] = res.Uncertainties
	}

	msg := sdka2a.NewMessage(sdka2a.MessageRoleAgent, &sdka2a.DataPart{Data: data})
	if len(res.Metadata) > 0 {
		msg.Metadata = make(map[string]any, len(res.Metadata))
		for k, v := range res.Metadata {
			msg.Metadata[k] = v
		}
	}

	return msg
}
