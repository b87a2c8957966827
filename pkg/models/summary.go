package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Summary is a summarized recording.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	Summary   string    `json:"summary"`
	FilePath  string    `json:"filePath"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// EntityID implements reconcile.Entity.
func (s Summary) EntityID() string {
	return s.ID
}

// Chat is one message in the conversation attached to a summary.
type Chat struct {
	ID        string    `json:"id"`
	SummaryID string    `json:"summaryId"`
	Message   string    `json:"message"`
	Role      Role      `json:"role"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// EntityID implements reconcile.Entity.
func (c Chat) EntityID() string {
	return c.ID
}

// ChatEvent is the closed set of events applied to the chat collection.
type ChatEvent interface {
	TargetChatID() string
	chatEvent()
}

// ChatAdded inserts a chat created outside the token stream.
type ChatAdded struct {
	Chat Chat
}

// TextAppended is one streamed token chunk for an assistant reply.
type TextAppended struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

func (e ChatAdded) TargetChatID() string    { return e.Chat.ID }
func (e TextAppended) TargetChatID() string { return e.ChatID }

func (ChatAdded) chatEvent()    {}
func (TextAppended) chatEvent() {}

// DecodeChatEvent parses one frame of the chat chunk stream.
func DecodeChatEvent(data []byte) (ChatEvent, error) {
	var chunk TextAppended
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("decode chat chunk: %w", err)
	}
	if chunk.ChatID == "" {
		return nil, fmt.Errorf("chat chunk without chatId")
	}
	return chunk, nil
}

// SummaryEvent is the closed set of events applied to the summary collection.
type SummaryEvent interface {
	TargetSummaryID() string
	summaryEvent()
}

// SummaryAdded inserts a finished summary.
type SummaryAdded struct {
	Summary Summary
}

func (e SummaryAdded) TargetSummaryID() string { return e.Summary.ID }
func (SummaryAdded) summaryEvent()             {}

// SummarizationProgress is a frame of the generic progress stream.
type SummarizationProgress struct {
	CurrentStep int      `json:"currentStep"`
	TotalSteps  int      `json:"totalSteps"`
	Message     string   `json:"message"`
	Summary     *Summary `json:"summary,omitempty"`
}

// Percent returns rounded completion in [0, 100].
func (p SummarizationProgress) Percent() int {
	if p.TotalSteps <= 0 {
		return 0
	}
	pct := math.Round(float64(p.CurrentStep) / float64(p.TotalSteps) * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// Done reports whether the run produced its summary.
func (p SummarizationProgress) Done() bool {
	return p.Summary != nil
}

// DecodeProgress parses one frame of the progress stream.
func DecodeProgress(data []byte) (SummarizationProgress, error) {
	var p SummarizationProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return SummarizationProgress{}, fmt.Errorf("decode progress: %w", err)
	}
	if p.Summary != nil && p.Summary.ID == "" {
		return SummarizationProgress{}, fmt.Errorf("progress carries a summary without id")
	}
	return p, nil
}
