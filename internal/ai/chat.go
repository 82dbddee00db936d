package ai

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSession holds the report a conversation is about and its history.
// It is created on the first interaction and reset on a new retrieval.
type ChatSession struct {
	ReportPath string
	Report     string
	Messages   []Message

	mu sync.Mutex
}

// NewChatSession loads the report at path.
func NewChatSession(path string) (*ChatSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return &ChatSession{ReportPath: path, Report: string(data)}, nil
}

// Reset points the session at a new report and clears the history.
func (s *ChatSession) Reset(path, report string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReportPath = path
	s.Report = report
	s.Messages = nil
}

// Ask records question, asks asker about the session's report and
// records the reply, which is also returned.
func (s *ChatSession) Ask(ctx context.Context, asker Asker, question string) string {
	s.mu.Lock()
	report := s.Report
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: question})
	s.mu.Unlock()

	reply := asker.Ask(ctx, report, question)

	s.mu.Lock()
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: reply})
	s.mu.Unlock()
	return reply
}

// History returns a copy of the messages so far.
func (s *ChatSession) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}
