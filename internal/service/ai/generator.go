package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/nvoronin/sprachtrainer/backend/internal/config"
	"github.com/nvoronin/sprachtrainer/backend/internal/model/dialogue"
	stagemodel "github.com/nvoronin/sprachtrainer/backend/internal/model/stage"
	"github.com/nvoronin/sprachtrainer/backend/internal/service/stage"
)

// Generator implements the generation stage on an in-process Ark chat
// model instead of the remote generation service. It speaks the same
// contract as the HTTP client, so the orchestrator cannot tell them
// apart.
type Generator struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewGenerator compiles the prompt chain for the configured chat model.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (*Generator, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &Generator{
		chatModel: chatModel,
		chain:     runnable,
	}, nil
}

// Generate produces the assistant's answer for one prompt plus history.
// Model call failures are reported as transport errors so the retry
// executor treats the in-process model like any other remote stage.
func (g *Generator) Generate(ctx context.Context, req *stagemodel.GenerationRequest) (*stagemodel.GenerationResult, error) {
	input := map[string]any{
		"system":  req.System,
		"history": historyMessages(req.History),
		"query":   req.Prompt,
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return nil, &stage.TransportError{Stage: stage.Generation, Err: err}
	}

	log.Printf("[ai] generated answer length=%d history=%d", len(response.Content), len(req.History))
	return &stagemodel.GenerationResult{Answer: response.Content}, nil
}

func historyMessages(turns []dialogue.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case dialogue.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case dialogue.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return history
}
