package chat

// FormatHistory renders a transcript as display lines. Human and AI turns get a
// speaker prefix, system messages and any other role are emitted as-is.
func FormatHistory(messages []Message) []string {
	readable := make([]string, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleHuman, RoleAI:
			readable = append(readable, msg.Role.Label()+": "+msg.Content)
		default:
			readable = append(readable, msg.Content)
		}
	}
	return readable
}

// CloneHistory returns a copy that callers may append to without aliasing the input.
func CloneHistory(messages []Message) []Message {
	copied := make([]Message, len(messages), len(messages)+2)
	copy(copied, messages)
	return copied
}
