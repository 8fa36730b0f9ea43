package agent

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/models"
)

// observedModel reports every chat model call on the bus and converts
// backend failures with models.HandleError.
type observedModel struct {
	inner model.ToolCallingChatModel
	bus   *events.Bus
	name  string
}

// observeModel wraps m so its calls emit model.call events. A nil bus only
// disables the events. It returns m unchanged when m is already observed.
func observeModel(m model.ToolCallingChatModel, bus *events.Bus, name string) model.ToolCallingChatModel {
	if m == nil {
		return m
	}
	if _, ok := m.(*observedModel); ok {
		return m
	}
	return &observedModel{inner: m, bus: bus, name: name}
}

func (o *observedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	o.bus.Emit(ctx, events.SourceAgent, events.ModelCallPayload{
		Phase:    events.ModelCallRequest,
		Model:    o.name,
		Messages: len(input),
	})

	out, err := o.inner.Generate(ctx, input, opts...)
	if err != nil {
		err = models.HandleError(err)
		o.bus.Emit(ctx, events.SourceAgent, events.ModelCallPayload{
			Phase: events.ModelCallError,
			Model: o.name,
			Error: err.Error(),
		})
		return nil, err
	}

	payload := events.ModelCallPayload{
		Phase:     events.ModelCallResponse,
		Model:     o.name,
		ToolCalls: len(out.ToolCalls),
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		payload.TokensInput = out.ResponseMeta.Usage.PromptTokens
		payload.TokensOutput = out.ResponseMeta.Usage.CompletionTokens
	}
	o.bus.Emit(ctx, events.SourceAgent, payload)
	return out, nil
}

// Stream reports the request and a failure to open the stream. Usage is not
// known until the stream is drained, so no response event is emitted.
func (o *observedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	o.bus.Emit(ctx, events.SourceAgent, events.ModelCallPayload{
		Phase:    events.ModelCallRequest,
		Model:    o.name,
		Messages: len(input),
	})

	sr, err := o.inner.Stream(ctx, input, opts...)
	if err != nil {
		err = models.HandleError(err)
		o.bus.Emit(ctx, events.SourceAgent, events.ModelCallPayload{
			Phase: events.ModelCallError,
			Model: o.name,
			Error: err.Error(),
		})
		return nil, err
	}
	return sr, nil
}

func (o *observedModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := o.inner.WithTools(infos)
	if err != nil {
		return nil, err
	}
	return &observedModel{inner: inner, bus: o.bus, name: o.name}, nil
}

var _ model.ToolCallingChatModel = (*observedModel)(nil)
