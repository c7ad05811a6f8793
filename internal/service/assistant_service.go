package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"strayland/internal/llm"
	"strayland/internal/models"

	"gopkg.in/yaml.v3"
)

const (
	maxChatMessages       = 30
	maxChatContentLen     = 4000
	defaultAssistantTurns = 12
)

// AssistantProfile is the server-side persona of the chat assistant.
type AssistantProfile struct {
	Name         string   `yaml:"name" json:"name"`
	SystemPrompt string   `yaml:"system_prompt" json:"-"`
	Suggestions  []string `yaml:"suggestions" json:"suggestions"`
	MaxHistory   int      `yaml:"max_history" json:"-"`
	Temperature  *float64 `yaml:"temperature" json:"-"`
}

// DefaultAssistantProfile is used when no profile file is configured.
func DefaultAssistantProfile() AssistantProfile {
	return AssistantProfile{
		Name: "Strayland helper",
		SystemPrompt: "You are the friendly helper of Strayland, a community feed for stray animals, " +
			"shelters and adoption cafes. Answer questions about adoption, animal care and " +
			"the places people share. Keep answers short and practical. If you are unsure, " +
			"suggest contacting a local shelter.",
		Suggestions: []string{
			"What is this site for?",
			"Where can I adopt an animal?",
			"I found a stray puppy. Where can I get it checked?",
			"Which shelter can take in a stray puppy?",
			"Are there cafes where I can adopt a pet?",
			"How do I bond with a new pet?",
			"What do I need before adopting a pet?",
		},
		MaxHistory: defaultAssistantTurns,
	}
}

// LoadAssistantProfile reads a YAML profile; an empty path yields the default.
// Missing fields fall back to the default profile.
func LoadAssistantProfile(path string) (AssistantProfile, error) {
	profile := DefaultAssistantProfile()
	if path == "" {
		return profile, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return AssistantProfile{}, fmt.Errorf("read assistant profile: %w", err)
	}

	var loaded AssistantProfile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return AssistantProfile{}, fmt.Errorf("parse assistant profile %s: %w", path, err)
	}
	if loaded.Name != "" {
		profile.Name = loaded.Name
	}
	if strings.TrimSpace(loaded.SystemPrompt) != "" {
		profile.SystemPrompt = strings.TrimSpace(loaded.SystemPrompt)
	}
	if len(loaded.Suggestions) > 0 {
		profile.Suggestions = loaded.Suggestions
	}
	if loaded.MaxHistory > 0 {
		profile.MaxHistory = loaded.MaxHistory
	}
	if loaded.Temperature != nil {
		if *loaded.Temperature < 0 || *loaded.Temperature > 2 {
			return AssistantProfile{}, fmt.Errorf("assistant profile temperature %v out of range", *loaded.Temperature)
		}
		profile.Temperature = loaded.Temperature
	}
	return profile, nil
}

// Completer sends a chat completion request upstream.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, req llm.Request) (string, error)
}

type AssistantService struct {
	client  Completer
	profile AssistantProfile
}

func NewAssistantService(client Completer, profile AssistantProfile) *AssistantService {
	if profile.MaxHistory <= 0 {
		profile.MaxHistory = defaultAssistantTurns
	}
	return &AssistantService{client: client, profile: profile}
}

// Profile returns the active assistant profile.
func (s *AssistantService) Profile() AssistantProfile {
	return s.profile
}

// Reply validates the conversation and returns the assistant's next message.
func (s *AssistantService) Reply(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if err := validateConversation(messages); err != nil {
		return "", err
	}
	if s.client == nil || !s.client.Configured() {
		return "", models.NewLLMUnavailableError()
	}

	history := messages
	if len(history) > s.profile.MaxHistory {
		history = history[len(history)-s.profile.MaxHistory:]
	}
	wire := make([]llm.Message, 0, len(history)+1)
	wire = append(wire, llm.Message{Role: models.ChatRoleSystem, Content: s.profile.SystemPrompt})
	for _, m := range history {
		wire = append(wire, llm.Message{Role: m.Role, Content: strings.TrimSpace(m.Content)})
	}

	reply, err := s.client.Complete(ctx, llm.Request{Messages: wire, Temperature: s.profile.Temperature})
	if errors.Is(err, llm.ErrNotConfigured) {
		return "", models.NewLLMUnavailableError()
	}
	if err != nil {
		return "", models.NewUpstreamError("assistant", err)
	}
	return reply, nil
}

func validateConversation(messages []models.ChatMessage) error {
	if len(messages) == 0 {
		return models.NewValidationError("messages are required")
	}
	if len(messages) > maxChatMessages {
		return models.NewValidationError(fmt.Sprintf("too many messages (max %d)", maxChatMessages))
	}
	for i, m := range messages {
		switch m.Role {
		case models.ChatRoleUser, models.ChatRoleAssistant:
		default:
			return models.NewValidationError(fmt.Sprintf("messages[%d]: role must be user or assistant", i))
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			return models.NewValidationError(fmt.Sprintf("messages[%d]: content is required", i))
		}
		if utf8.RuneCountInString(content) > maxChatContentLen {
			return models.NewValidationError(fmt.Sprintf("messages[%d]: content too long (max %d characters)", i, maxChatContentLen))
		}
	}
	if messages[len(messages)-1].Role != models.ChatRoleUser {
		return models.NewValidationError("the last message must come from the user")
	}
	return nil
}
