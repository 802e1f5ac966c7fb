package models

// Chat modes accepted by the chat endpoint.
const (
	ChatModeAuto     = "auto"
	ChatModeChat     = "chat"
	ChatModeEstimate = "estimate"
)

// Chat message roles.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

// ChatMessage is one entry of the conversation history sent by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsValidChatMode returns true if mode is one of the supported chat modes.
func IsValidChatMode(mode string) bool {
	switch mode {
	case ChatModeAuto, ChatModeChat, ChatModeEstimate:
		return true
	default:
		return false
	}
}

// IsValidChatRole returns true if role is one of the supported message roles.
func IsValidChatRole(role string) bool {
	switch role {
	case ChatRoleUser, ChatRoleAssistant, ChatRoleSystem:
		return true
	default:
		return false
	}
}

// ChatRequest is a chat turn. Names, when present, are estimated first.
type ChatRequest struct {
	Message string
	Names   []string
	History []ChatMessage
	Filters CatalogFilters
	Mode    string
	UseLLM  bool
}

// ChatResponse is the reply text together with the estimate data, if any.
type ChatResponse struct {
	Reply string            `json:"reply"`
	Data  *EstimateResponse `json:"data"`
}
