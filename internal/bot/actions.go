package bot

// Format selects how a message body is rendered by the transport.
type Format string

const (
	// FormatPlain renders the body as-is.
	FormatPlain Format = ""
	// FormatHTML renders <code>/<del> style markup.
	FormatHTML Format = "html"
	// FormatMarkdown renders markdown links, used by approval prompts.
	FormatMarkdown Format = "markdown"
)

// Button is one inline action attached to a message. Data is the raw
// callback payload delivered back as a CallbackAction.
type Button struct {
	Label string
	Data  string
}

// OutboundAction is one instruction for the dispatch layer. The concrete
// types below form a closed set; the dispatcher applies them in order
// through the Transport.
type OutboundAction interface {
	outbound()
}

// SendMessage delivers a new message to a user or channel, optionally with
// inline action buttons (rows of Button).
type SendMessage struct {
	Target  int64
	Body    string
	Format  Format
	Actions [][]Button
}

// EditMessage replaces the body of a previously sent message.
type EditMessage struct {
	Target int64
	Ref    MessageRef
	Body   string
	Format Format
}

// EditActionSet replaces the inline buttons of a previously sent message.
// A nil Actions clears them.
type EditActionSet struct {
	Target  int64
	Ref     MessageRef
	Actions [][]Button
}

// AnswerCallback acknowledges a button press, optionally with a short
// notice shown to the pressing user.
type AnswerCallback struct {
	ID   string
	Text string
}

func (SendMessage) outbound()    {}
func (EditMessage) outbound()    {}
func (EditActionSet) outbound()  {}
func (AnswerCallback) outbound() {}
