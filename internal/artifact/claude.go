package artifact

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/pkg/anthropic"
)

const citationSystemPrompt = `You write a single short dedication line for a charity milestone certificate.
Respond with one sentence, at most 20 words, no quotes, no preamble.`

// ClaudeProducer decorates another producer with a model-written dedication
// line. Any API failure falls back to the inner producer's citation; the
// artifact contract never surfaces errors.
type ClaudeProducer struct {
	client anthropic.Client
	model  string
	inner  Producer
}

func NewClaude(client anthropic.Client, modelID string, inner Producer) *ClaudeProducer {
	if inner == nil {
		inner = NewSVG()
	}
	return &ClaudeProducer{client: client, model: modelID, inner: inner}
}

func (p *ClaudeProducer) Produce(ctx context.Context, a model.ClaimableAchievement) Artifact {
	art := p.inner.Produce(ctx, a)

	prompt := fmt.Sprintf(
		"Milestone: %s tier, total %s. Subject: %s. Charity: %s.",
		a.Tier, model.FormatAmount(a.Threshold), a.Metadata.SubjectName(), a.Metadata.CharityName,
	)

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 100,
		System:    citationSystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("dedication generation failed, using fallback citation",
			zap.String("achievement", a.ID),
			zap.Error(err))
		return art
	}
	resp.Usage.LogUsage(p.model, "artifact")

	if text := resp.Text(); text != "" {
		art.Citation = text
	}
	return art
}
