package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthEngine is the authorization state machine as the dispatcher sees it.
type AuthEngine interface {
	IsAuthorized(ctx context.Context, id int64) bool
	IsOwner(id int64) bool
	RequestAccess(ctx context.Context, sender int64, args []string) ([]OutboundAction, error)
	Decide(ctx context.Context, ev CallbackAction, cb Callback) ([]OutboundAction, error)
	ManualRevoke(ctx context.Context, admin, target int64) ([]OutboundAction, error)
}

// CodeEngine is the submission pipeline as the dispatcher sees it.
type CodeEngine interface {
	Submit(ctx context.Context, sender int64, text string) ([]OutboundAction, error)
	Toggle(ctx context.Context, ev CallbackAction, cb Callback) ([]OutboundAction, error)
	History(ctx context.Context, sender int64, args []string) ([]OutboundAction, error)
}

// Dispatcher routes inbound events into the engines and applies the actions
// they return through the transport. Authorization failures are silent:
// unauthorized text is dropped, and owner-only commands from non-owners are
// ignored without a reply. Engine errors are logged and the event abandoned;
// there is no retry or compensation here.
type Dispatcher struct {
	Auth      AuthEngine
	Codes     CodeEngine
	Transport Transport
	Log       zerolog.Logger
}

// HandleText processes a plain private message: authorized senders reach the
// submission pipeline, everyone else is dropped.
func (d *Dispatcher) HandleText(ctx context.Context, ev TextMessage) {
	lg := d.eventLogger("text", ev.Sender)
	if !d.Auth.IsAuthorized(ctx, ev.Sender) {
		lg.Debug().Msg("unauthorized sender, dropped")
		return
	}
	actions, err := d.Codes.Submit(ctx, ev.Sender, ev.Text)
	d.finish(ctx, lg, actions, err)
}

// HandleCommand processes /auth, /h, and /del. History lookup and manual
// revocation are owner-only; unknown commands are ignored.
func (d *Dispatcher) HandleCommand(ctx context.Context, ev Command) {
	lg := d.eventLogger("command", ev.Sender).With().Str("command", ev.Name).Logger()

	switch ev.Name {
	case "auth":
		actions, err := d.Auth.RequestAccess(ctx, ev.Sender, ev.Args)
		d.finish(ctx, lg, actions, err)

	case "h":
		if !d.Auth.IsOwner(ev.Sender) {
			return
		}
		actions, err := d.Codes.History(ctx, ev.Sender, ev.Args)
		d.finish(ctx, lg, actions, err)

	case "del":
		if !d.Auth.IsOwner(ev.Sender) {
			return
		}
		if len(ev.Args) != 1 {
			d.apply(ctx, lg, []OutboundAction{SendMessage{Target: ev.Sender, Body: "Query format error."}})
			return
		}
		target, err := strconv.ParseInt(strings.TrimSpace(ev.Args[0]), 10, 64)
		if err != nil {
			d.apply(ctx, lg, []OutboundAction{SendMessage{Target: ev.Sender, Body: "Query format error."}})
			return
		}
		actions, rerr := d.Auth.ManualRevoke(ctx, ev.Sender, target)
		d.finish(ctx, lg, actions, rerr)
	}
}

// HandleCallback decodes a button press once, at this boundary, and routes
// the closed set of payload variants. Payloads that do not decode are
// treated as stale: the action set is cleared and the press answered with
// "Out of dated".
func (d *Dispatcher) HandleCallback(ctx context.Context, ev CallbackAction) {
	lg := d.eventLogger("callback", ev.Sender)

	cb, err := ParseCallback(ev.Data)
	if err != nil {
		lg.Debug().Str("data", ev.Data).Msg("undecodable callback payload")
		d.apply(ctx, lg, staleActions(ev))
		return
	}

	switch cb.Kind {
	case CallbackIgnore:
		d.apply(ctx, lg, []OutboundAction{
			EditActionSet{Target: ev.Origin, Ref: ev.Ref},
			AnswerCallback{ID: ev.ID},
		})

	case CallbackMark, CallbackUnmark:
		actions, err := d.Codes.Toggle(ctx, ev, cb)
		d.finish(ctx, lg, actions, err)

	case CallbackGrant, CallbackDeny, CallbackRevoke:
		// Decision buttons only ever live in owner chats; the check closes
		// the gap for forged payloads.
		if !d.Auth.IsOwner(ev.Sender) {
			return
		}
		actions, err := d.Auth.Decide(ctx, ev, cb)
		d.finish(ctx, lg, actions, err)
	}
}

// finish logs an engine error or applies the returned actions.
func (d *Dispatcher) finish(ctx context.Context, lg zerolog.Logger, actions []OutboundAction, err error) {
	if err != nil {
		lg.Error().Err(err).Msg("event handling failed")
		return
	}
	d.apply(ctx, lg, actions)
}

// apply executes outbound actions in order through the transport.
func (d *Dispatcher) apply(ctx context.Context, lg zerolog.Logger, actions []OutboundAction) {
	for _, a := range actions {
		var err error
		switch act := a.(type) {
		case SendMessage:
			_, err = d.Transport.Send(ctx, act.Target, act.Body, act.Format, act.Actions)
		case EditMessage:
			err = d.Transport.Edit(ctx, act.Target, act.Ref, act.Body, act.Format)
		case EditActionSet:
			err = d.Transport.EditActions(ctx, act.Target, act.Ref, act.Actions)
		case AnswerCallback:
			err = d.Transport.AnswerCallback(ctx, act.ID, act.Text)
		}
		if err != nil {
			lg.Error().Err(err).Type("action", a).Msg("outbound action failed")
			return
		}
	}
}

// eventLogger attaches a correlation id and sender to the event's logs.
func (d *Dispatcher) eventLogger(kind string, sender int64) zerolog.Logger {
	return d.Log.With().
		Str("event_id", uuid.NewString()).
		Str("event", kind).
		Int64("sender", sender).
		Logger()
}

// staleActions clears the pressed prompt and reports the staleness inline.
func staleActions(ev CallbackAction) []OutboundAction {
	return []OutboundAction{
		EditActionSet{Target: ev.Origin, Ref: ev.Ref},
		AnswerCallback{ID: ev.ID, Text: "Out of dated"},
	}
}
