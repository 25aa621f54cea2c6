package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"smart-task-manager/backend/internal/ai"

	"github.com/gofrs/uuid"
)

const (
	detailedSummaryInstruction = "You are an expert task summarizer. Generate a detailed, point-form summary " +
		"of the user's task description. The output MUST be a list of 4-6 bullet points " +
		"that provide insights, structure, and break down complex concepts. Do NOT include " +
		"any introductory or concluding text, only the bullet points."

	prioritizeInstruction = "You are an expert prioritization engine. Analyze the provided list of tasks, " +
		"considering their 'due_date', 'priority', and the content of their 'description' " +
		"to determine the optimal working order. Rank the tasks by their **Urgency and Importance**. " +
		"Your final output MUST be a clean Markdown table with exactly three columns: " +
		"'Rank (1, 2, 3..)', 'Task Title', and 'Justification (1 concise sentence).' " +
		"Do NOT include any introductory text or conclusions outside the table."

	chatInstruction = "You are the Smart Task Manager AI Assistant. " +
		"Answer concisely, helpfully and professionally. If asked for task-specific advice, " +
		"give actionable steps. You know the user's USER_ID but not their real name; if asked, " +
		"tell the user that you only know their USER_ID and display it when requested."

	maxGeneratedSubtasks = 6
)

// AssistantService turns task text into summaries, breakdowns and rankings.
type AssistantService interface {
	Summarize(ctx context.Context, description string) (string, error)
	SummarizeDetailed(ctx context.Context, description string) ([]string, error)
	SubtaskMarkdown(ctx context.Context, description string) (string, error)
	BreakDownTask(ctx context.Context, description string) ([]string, error)
	Prioritize(ctx context.Context, tasks []map[string]interface{}) (string, error)
	Chat(ctx context.Context, userID uuid.UUID, message string) (string, error)
}

type AssistantServiceImpl struct {
	generator ai.Generator
}

// NewAssistantService accepts a nil generator; every call then fails with
// ErrAIUnavailable.
func NewAssistantService(generator ai.Generator) *AssistantServiceImpl {
	return &AssistantServiceImpl{generator: generator}
}

func (s *AssistantServiceImpl) generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	if s.generator == nil {
		return "", ErrAIUnavailable
	}
	text, err := s.generator.Generate(ctx, prompt, systemInstruction)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return "", ErrAIUnavailable
		}
		return "", fmt.Errorf("%w: %v", ErrAIFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrAIFailed)
	}
	return text, nil
}

func (s *AssistantServiceImpl) Summarize(ctx context.Context, description string) (string, error) {
	prompt := "Summarize this task description in 1-2 concise, clear sentences:\n\n" + description
	return s.generate(ctx, prompt, "")
}

func (s *AssistantServiceImpl) SummarizeDetailed(ctx context.Context, description string) ([]string, error) {
	text, err := s.generate(ctx, "Task Description:\n"+description, detailedSummaryInstruction)
	if err != nil {
		return nil, err
	}

	points := ParseListItems(text)
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: summary had no points", ErrAIFailed)
	}
	return points, nil
}

func (s *AssistantServiceImpl) SubtaskMarkdown(ctx context.Context, description string) (string, error) {
	prompt := "Analyze the following task description and break it down into 4-6 detailed, actionable subtasks.\n" +
		"Return the output as a clean, structured list using markdown bullet points (*).\n\n" +
		"Complex Task: " + description
	return s.generate(ctx, prompt, "")
}

func (s *AssistantServiceImpl) BreakDownTask(ctx context.Context, description string) ([]string, error) {
	prompt := "Break down the following complex task into 3 to 6 essential and actionable subtasks.\n" +
		"Provide the output as a simple numbered list (1., 2., 3., etc.). Each subtask must be a single, complete sentence.\n\n" +
		"Complex Task: " + description
	text, err := s.generate(ctx, prompt, "")
	if err != nil {
		return nil, err
	}

	titles := ParseListItems(text)
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: no discernible subtasks", ErrAIFailed)
	}
	if len(titles) > maxGeneratedSubtasks {
		titles = titles[:maxGeneratedSubtasks]
	}
	return titles, nil
}

func (s *AssistantServiceImpl) Prioritize(ctx context.Context, tasks []map[string]interface{}) (string, error) {
	if len(tasks) == 0 {
		return "", fmt.Errorf("%w: a list of tasks is required for prioritization", ErrInvalidTaskInput)
	}

	tasksJSON, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTaskInput, err)
	}

	prompt := "Rank the following tasks and provide a concise justification for the suggested order.\n\n" +
		"Task List:\n" + string(tasksJSON) + "\n\nReturn ONLY the Markdown table."
	return s.generate(ctx, prompt, prioritizeInstruction)
}

// Chat answers a single message. Nothing is kept between calls.
func (s *AssistantServiceImpl) Chat(ctx context.Context, userID uuid.UUID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message cannot be empty", ErrInvalidTaskInput)
	}
	prompt := fmt.Sprintf("USER_ID: %s\n\nUser: %s\n\nAssistant:", userID, message)
	return s.generate(ctx, prompt, chatInstruction)
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// ParseListItems splits model output into list entries, dropping numbering,
// bullet markers and blank lines.
func ParseListItems(text string) []string {
	items := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		item := listMarker.ReplaceAllString(line, "")
		item = strings.TrimSpace(strings.TrimLeft(item, "*-•"))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
