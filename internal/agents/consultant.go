package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"chefia/internal/models"
)

const tableLegend = `The table is ';'-separated with comma decimals. Columns: product_name,
popularity (units sold), unit_price, production_cost, profitability (unit price
minus production cost), total_revenue, classification (Star, Workhorse, Puzzle or Dog).`

// Options tunes the generation of every agent call.
type Options struct {
	Temperature float64
	MaxTokens   int
	// HistoryTurns bounds how many earlier chat messages are replayed.
	HistoryTurns int
}

func (o Options) callOptions() []llms.CallOption {
	var opts []llms.CallOption
	if o.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(o.Temperature))
	}
	if o.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(o.MaxTokens))
	}
	return opts
}

// Consultant produces menu reports and answers data questions.
type Consultant struct {
	opts   Options
	logger *slog.Logger
}

// NewConsultant creates a consultant with the given generation options
func NewConsultant(opts Options, logger *slog.Logger) *Consultant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consultant{opts: opts, logger: logger}
}

// ReportCrew builds the two-step analyst then consultant crew over table.
func (c *Consultant) ReportCrew(model llms.Model, userName, table string) *Crew {
	if userName == "" {
		userName = "the owner"
	}
	analyst := &Agent{
		Role:      "Menu Engineering Analyst",
		Goal:      "Place items on the menu engineering matrix and find profit opportunities.",
		Backstory: "You are a food and beverage BI specialist. You cross profitability against popularity.",
		Model:     model,
	}
	advisor := &Agent{
		Role:      "Restaurant Business Consultant",
		Goal:      fmt.Sprintf("Turn the technical analysis into practical actions for %s.", userName),
		Backstory: fmt.Sprintf("You are an experienced consultant and partner of %s. You are direct, use emojis and focus on return on investment.", userName),
		Model:     model,
	}

	analysis := &Task{
		Description: fmt.Sprintf(`Analyse this menu data:
%s

%s

1. Identify the most promising Star or Puzzle item.
2. Identify one Workhorse or Dog item that needs adjustment.`, table, tableLegend),
		ExpectedOutput: "A technical summary naming the products and their figures.",
		Agent:          analyst,
	}
	advice := &Task{
		Description: fmt.Sprintf(`Write a short message to %s with three practical,
concise recommendations based on the products the analyst identified. Use a
motivating tone and emojis.`, userName),
		ExpectedOutput: "A ready-to-send message.",
		Agent:          advisor,
		Context:        []*Task{analysis},
	}

	return &Crew{
		Tasks:   []*Task{analysis, advice},
		Options: c.opts.callOptions(),
		Logger:  c.logger,
	}
}

// Report runs the report crew and returns display-safe text.
func (c *Consultant) Report(ctx context.Context, model llms.Model, userName, table string) (string, error) {
	out, err := c.ReportCrew(model, userName, table).Kickoff(ctx)
	if err != nil {
		return "", err
	}
	return Sanitize(out), nil
}

func (c *Consultant) cfo(model llms.Model) *Agent {
	return &Agent{
		Role:      "Virtual Restaurant CFO",
		Goal:      "Answer questions about revenue, margins and item performance.",
		Backstory: "You have the restaurant's exact financial data. Answer directly. When asked about profit, use price minus cost.",
		Model:     model,
	}
}

func chatTask(agent *Agent, question, table string) *Task {
	return &Task{
		Description: fmt.Sprintf(`User question: %q

Restaurant data:
%s

%s

Answer the question using only this data.`, question, table, tableLegend),
		ExpectedOutput: "A direct answer to the question.",
		Agent:          agent,
	}
}

// Chat answers question over table. Earlier messages of the conversation
// are replayed, bounded by Options.HistoryTurns.
func (c *Consultant) Chat(ctx context.Context, model llms.Model, question, table string, history []models.ChatMessage) (string, error) {
	agent := c.cfo(model)
	out, err := agent.Execute(ctx, chatTask(agent, question, table), c.history(history), c.opts.callOptions()...)
	if err != nil {
		return "", err
	}
	return Sanitize(out), nil
}

// ChatStream is Chat delivering the answer in chunks as the model writes it.
// Chunks are sanitized before onChunk sees them.
func (c *Consultant) ChatStream(ctx context.Context, model llms.Model, question, table string, history []models.ChatMessage, onChunk func(string) error) (string, error) {
	agent := c.cfo(model)
	opts := append(c.opts.callOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		return onChunk(Sanitize(string(chunk)))
	}))
	out, err := agent.Execute(ctx, chatTask(agent, question, table), c.history(history), opts...)
	if err != nil {
		return "", err
	}
	return Sanitize(out), nil
}

func (c *Consultant) history(msgs []models.ChatMessage) []llms.MessageContent {
	if c.opts.HistoryTurns <= 0 || len(msgs) == 0 {
		return nil
	}
	if len(msgs) > c.opts.HistoryTurns {
		msgs = msgs[len(msgs)-c.opts.HistoryTurns:]
	}
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		role := schema.ChatMessageTypeHuman
		if m.Role == models.ChatRoleAssistant {
			role = schema.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
