// Package bot defines the dispatch boundary between the chat transport and
// the core engines: typed inbound events, the outbound action vocabulary,
// the narrow Transport interface the core depends on, the callback payload
// codec, and the Dispatcher that routes events into the authorization state
// machine and the code submission pipeline.
package bot

// MessageRef identifies a previously sent message so it can be edited later.
// For the broadcast channel this is the forwarded post's id.
type MessageRef = int64

// TextMessage is a plain private message, the carrier for code submissions.
type TextMessage struct {
	Sender int64
	Text   string
}

// Command is a slash command with its arguments already split.
type Command struct {
	Sender int64
	Name   string
	Args   []string
}

// CallbackAction is a button press. Origin and Ref identify the message the
// pressed button was attached to; Data is the raw payload string.
type CallbackAction struct {
	Sender int64
	ID     string
	Origin int64
	Ref    MessageRef
	Data   string
}
