package dialogue

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-attributed utterance within a session's history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
