// Package conversation keeps the ordered chat history of one session.
package conversation

import "fmt"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	Role    Role
	Content string
}

// Conversation is an append-only list of messages in display order. Roles are
// not required to alternate. It is not safe for concurrent use.
type Conversation struct {
	messages []Message
}

func New(seed ...Message) *Conversation {
	c := &Conversation{}
	c.messages = append(c.messages, seed...)
	return c
}

func (c *Conversation) Append(role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	c.messages = append(c.messages, Message{Role: role, Content: content})
	return nil
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

func (c *Conversation) Reset() {
	c.messages = nil
}
