// Package agents runs role-playing LLM agents over a menu table.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Agent is a persona bound to a model.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
	Model     llms.Model
}

// Task is one unit of work handed to an agent. Outputs of the tasks in
// Context are appended to the prompt.
type Task struct {
	Description    string
	ExpectedOutput string
	Agent          *Agent
	Context        []*Task

	Output string
}

// systemPrompt describes the persona to the model
func (a *Agent) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", a.Role)
	if a.Backstory != "" {
		b.WriteString(a.Backstory)
		b.WriteString("\n")
	}
	if a.Goal != "" {
		fmt.Fprintf(&b, "Your goal: %s\n", a.Goal)
	}
	return b.String()
}

func (t *Task) prompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(t.Description))
	for _, dep := range t.Context {
		if dep.Output == "" {
			continue
		}
		b.WriteString("\n\nContext from the previous step:\n")
		b.WriteString(dep.Output)
	}
	if t.ExpectedOutput != "" {
		b.WriteString("\n\nExpected output: ")
		b.WriteString(t.ExpectedOutput)
	}
	return b.String()
}

// Execute runs t with history placed between the persona and the task.
func (a *Agent) Execute(ctx context.Context, t *Task, history []llms.MessageContent, options ...llms.CallOption) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, a.systemPrompt()))
	messages = append(messages, history...)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, t.prompt()))

	resp, err := a.Model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", a.Role, err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", fmt.Errorf("%s: %w", a.Role, ErrEmptyResponse)
	}
	t.Output = resp.Choices[0].Content
	return t.Output, nil
}

// Crew runs its tasks one after another.
type Crew struct {
	Tasks   []*Task
	Options []llms.CallOption
	Logger  *slog.Logger
}

// Kickoff executes every task in order and returns the last output.
func (c *Crew) Kickoff(ctx context.Context) (string, error) {
	if len(c.Tasks) == 0 {
		return "", errors.New("crew has no tasks")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var out string
	for i, t := range c.Tasks {
		start := time.Now()
		res, err := t.Agent.Execute(ctx, t, nil, c.Options...)
		if err != nil {
			return "", err
		}
		logger.Debug("crew task finished",
			"step", i+1,
			"role", t.Agent.Role,
			"duration", time.Since(start),
			"chars", len(res),
		)
		out = res
	}
	return out, nil
}

// Sanitize escapes dollar signs so markdown renderers do not read them as
// math delimiters.
func Sanitize(text string) string {
	return strings.ReplaceAll(text, "$", `\$`)
}
