package flavor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bitcory/knight/internal/game/weapon"
)

// ErrEmptyCompletion is returned when the model answers without text.
var ErrEmptyCompletion = errors.New("flavor: completion contained no text")

const blacksmithSystem = "You are a gruff but proud dwarven blacksmith narrating a weapon " +
	"enhancement game. Keep every line short, vivid and free of emoji."

// messageCreator is the subset of the Anthropic messages API the generator uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicConfig configures AnthropicGenerator.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

// AnthropicGenerator generates narrative with the Anthropic messages API.
type AnthropicGenerator struct {
	messages  messageCreator
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
}

// NewAnthropicGenerator builds a generator backed by a live API client.
//
// Precondition: cfg.APIKey and cfg.Model must be non-empty.
func NewAnthropicGenerator(cfg AnthropicConfig) *AnthropicGenerator {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	)
	return newAnthropicGenerator(&client.Messages, cfg)
}

func newAnthropicGenerator(m messageCreator, cfg AnthropicConfig) *AnthropicGenerator {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AnthropicGenerator{
		messages:  m,
		model:     anthropic.Model(cfg.Model),
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

// Flavor implements Generator. The model is asked for a JSON object with
// quote, weaponName and description.
func (g *AnthropicGenerator) Flavor(ctx context.Context, w weapon.Weapon, success bool, newLevel int) (Text, error) {
	var prompt string
	if success {
		prompt = fmt.Sprintf(
			"The %s called %q (%s) was just enhanced from +%d to +%d (%s grade). "+
				"Reply with only a JSON object {\"quote\": ..., \"weaponName\": ..., \"description\": ...}: "+
				"a one-sentence triumphant blacksmith quote, a new epic name for the weapon "+
				"without the level prefix, and a one-sentence description.",
			w.Type, w.Name, w.Description, w.Level, newLevel, weapon.GradeOf(newLevel),
		)
	} else {
		prompt = fmt.Sprintf(
			"An enhancement of the +%d %s called %q just failed. "+
				"Reply with only a JSON object {\"quote\": ..., \"weaponName\": %q, \"description\": %q} "+
				"where quote is a one-sentence rueful blacksmith remark.",
			w.Level, w.Type, w.Name, w.Name, w.Description,
		)
	}

	raw, err := g.complete(ctx, prompt)
	if err != nil {
		return Text{}, err
	}
	t, err := parseText(raw)
	if err != nil {
		return Text{}, err
	}
	if !success {
		t.WeaponName, t.Description = w.Name, w.Description
	}
	return t, nil
}

// BattleLog implements Generator.
func (g *AnthropicGenerator) BattleLog(ctx context.Context, w weapon.Weapon, opp Opponent, won bool) (string, error) {
	verdict := "lost"
	if won {
		verdict = "won"
	}
	prompt := fmt.Sprintf(
		"A knight wielding %s fought %s wielding %s and %s. "+
			"Describe the duel in one dramatic sentence of plain text.",
		w.DisplayName(), opp.Name, opp.Weapon.DisplayName(), verdict,
	)
	return g.complete(ctx, prompt)
}

func (g *AnthropicGenerator) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: blacksmithSystem}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("flavor: anthropic request: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

// parseText extracts the first JSON object in raw. Models occasionally wrap
// the object in prose or code fences.
func parseText(raw string) (Text, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Text{}, fmt.Errorf("flavor: no JSON object in completion %q", raw)
	}
	var t Text
	if err := json.Unmarshal([]byte(raw[start:end+1]), &t); err != nil {
		return Text{}, fmt.Errorf("flavor: decoding completion: %w", err)
	}
	t.Quote = strings.TrimSpace(t.Quote)
	t.WeaponName = strings.TrimSpace(t.WeaponName)
	t.Description = strings.TrimSpace(t.Description)
	if t.Quote == "" {
		return Text{}, fmt.Errorf("flavor: completion missing quote")
	}
	return t, nil
}
