package bot

import "context"

// Transport is the outbound surface of the chat layer, the only part of the
// transport the core depends on. Send returns the reference of the created
// message so the pipeline can store broadcast post ids and edit interim
// status notices.
//
// Implementations are external collaborators (a real chat client, or the
// console transport in cmd/bot). Calls block until the transport responds;
// no retry or timeout policy is applied here.
type Transport interface {
	Send(ctx context.Context, target int64, body string, format Format, actions [][]Button) (MessageRef, error)
	Edit(ctx context.Context, target int64, ref MessageRef, body string, format Format) error
	EditActions(ctx context.Context, target int64, ref MessageRef, actions [][]Button) error
	AnswerCallback(ctx context.Context, id, text string) error
}
