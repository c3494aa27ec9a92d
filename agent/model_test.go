package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/confidence"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/model"
)

// MockModelImpl replies with a canned text or error.
type MockModelImpl struct{ mock.Mock }

func (m *MockModelImpl) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	args := m.Called(ctx, req)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	if err := args.Error(1); err != nil {
		errCh <- err
	} else {
		respCh <- model.Response{Text: args.String(0), FinishReason: "stop"}
	}

	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *MockModelImpl) Info() model.Info {
	args := m.Called()
	return args.Get(0).(model.Info)
}

func TestModelAgent_Analyze(t *testing.T) {
	llm := &MockModelImpl{}
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == DefaultInstruction &&
			len(req.Messages) == 1 &&
			req.Messages[0].Text == "Task: classify\nInput: {\"text\":\"hello\"}"
	})).Return("Greeting.\nconfidence: 0.8", nil)

	a := NewModelAgent(llm)

	raw, err := a.Analyze(context.Background(), "classify", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Greeting.\nconfidence: 0.8", raw)

	res := confidence.NewEngine(func(o *confidence.Options) { o.Strategy = confidence.StrategyPattern }).Normalize(raw)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)

	llm.AssertExpectations(t)
}

func TestModelAgent_JSONReply(t *testing.T) {
	llm := &MockModelImpl{}
	llm.On("Generate", mock.Anything, mock.Anything).Return(`{"answer":"yes","confidence":0.9}`, nil)

	raw, err := NewModelAgent(llm).Analyze(context.Background(), "t", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"answer": "yes", "confidence": 0.9}, raw)
}

func TestModelAgent_DynamicInstruction(t *testing.T) {
	llm := &MockModelImpl{}
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == "Expert on forecast" && req.Messages[0].Text == "forecast: Oslo"
	})).Return("sunny", nil)

	a := NewModelAgent(llm, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromFunc(func(_ context.Context, task string, _ any) (string, error) {
			return "Expert on " + task, nil
		})
		o.PromptTemplate = "{{.task}}: {{.data}}"
	})

	raw, err := a.Analyze(context.Background(), "forecast", "Oslo")
	require.NoError(t, err)
	assert.Equal(t, "sunny", raw)
}

func TestModelAgent_ModelError(t *testing.T) {
	llm := &MockModelImpl{}
	llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("rate limited"))

	_, err := NewModelAgent(llm).Analyze(context.Background(), "t", nil)
	assert.ErrorContains(t, err, "rate limited")
}

func TestModelAgent_Health(t *testing.T) {
	llm := &MockModelImpl{}
	llm.On("Info").Return(model.Info{Name: "gpt-test", Provider: "openai"})

	status := NewModelAgent(llm).CheckHealth(context.Background())
	assert.Equal(t, core.HealthHealthy, status.Status)
	assert.Equal(t, "openai/gpt-test", status.Message)
}

func TestInstruction(t *testing.T) {
	inst := NewInstructionFromText("static")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background(), "t", nil)
	require.NoError(t, err)
	assert.Equal(t, "static", got)

	failing := NewInstructionFromFunc(func(context.Context, string, any) (string, error) {
		return "", errors.New("no instruction")
	})
	assert.False(t, failing.IsStatic())

	_, err = failing.Resolve(context.Background(), "t", nil)
	assert.Error(t, err)
}
