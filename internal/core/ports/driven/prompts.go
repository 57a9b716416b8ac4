package driven

// PromptStore provides the role-tagged prompt skeleton used for grounded
// answering. Implementations may load it from a file or embed a default.
type PromptStore interface {
	// Skeleton returns the prompt messages. Exactly one user-role
	// message contains the UserPlaceholder token, which the assembler
	// replaces with the query and retrieved context.
	Skeleton() ([]ChatMessage, error)

	// Reload replaces any cached skeleton with a freshly loaded one.
	Reload() error
}

// UserPlaceholder is the token inside the skeleton's user message that is
// replaced with the assembled query + context block.
const UserPlaceholder = "{{QUERY}}"
