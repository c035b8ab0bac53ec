package enums

// ChatRole identifies the author of a persisted chat turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleHuman     ChatRole = "human"
)

var validChatRoles = []ChatRole{
	ChatRoleUser,
	ChatRoleAssistant,
	ChatRoleHuman,
}

// IsValid reports whether the value is a known ChatRole.
func (c ChatRole) IsValid() bool {
	return isKnown(validChatRoles, c)
}

// ParseChatRole converts raw input into a ChatRole.
func ParseChatRole(value string) (ChatRole, error) {
	return parse("chat role", validChatRoles, value)
}
