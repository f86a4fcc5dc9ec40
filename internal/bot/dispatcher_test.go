package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// ----- Fakes -----

type fakeAuth struct {
	authorized map[int64]bool
	owners     map[int64]bool

	requestSender int64
	requestArgs   []string
	requestOut    []OutboundAction

	decideCalled bool
	decideCB     Callback
	decideOut    []OutboundAction

	revokeAdmin  int64
	revokeTarget int64
	revokeCalled bool
}

func (f *fakeAuth) IsAuthorized(_ context.Context, id int64) bool { return f.authorized[id] }
func (f *fakeAuth) IsOwner(id int64) bool                         { return f.owners[id] }

func (f *fakeAuth) RequestAccess(_ context.Context, sender int64, args []string) ([]OutboundAction, error) {
	f.requestSender, f.requestArgs = sender, args
	return f.requestOut, nil
}

func (f *fakeAuth) Decide(_ context.Context, _ CallbackAction, cb Callback) ([]OutboundAction, error) {
	f.decideCalled, f.decideCB = true, cb
	return f.decideOut, nil
}

func (f *fakeAuth) ManualRevoke(_ context.Context, admin, target int64) ([]OutboundAction, error) {
	f.revokeCalled, f.revokeAdmin, f.revokeTarget = true, admin, target
	return nil, nil
}

type fakeCodes struct {
	submitSender int64
	submitText   string
	submitCalled bool
	submitOut    []OutboundAction
	submitErr    error

	toggleCalled bool
	toggleCB     Callback

	historySender int64
	historyArgs   []string
	historyCalled bool
}

func (f *fakeCodes) Submit(_ context.Context, sender int64, text string) ([]OutboundAction, error) {
	f.submitCalled, f.submitSender, f.submitText = true, sender, text
	return f.submitOut, f.submitErr
}

func (f *fakeCodes) Toggle(_ context.Context, _ CallbackAction, cb Callback) ([]OutboundAction, error) {
	f.toggleCalled, f.toggleCB = true, cb
	return nil, nil
}

func (f *fakeCodes) History(_ context.Context, sender int64, args []string) ([]OutboundAction, error) {
	f.historyCalled, f.historySender, f.historyArgs = true, sender, args
	return nil, nil
}

type appliedAction struct {
	kind   string
	target int64
	ref    MessageRef
	body   string
	id     string
	text   string
}

type recordTransport struct {
	applied []appliedAction
	sendErr error
}

func (r *recordTransport) Send(_ context.Context, target int64, body string, _ Format, _ [][]Button) (MessageRef, error) {
	if r.sendErr != nil {
		return 0, r.sendErr
	}
	r.applied = append(r.applied, appliedAction{kind: "send", target: target, body: body})
	return MessageRef(len(r.applied)), nil
}

func (r *recordTransport) Edit(_ context.Context, target int64, ref MessageRef, body string, _ Format) error {
	r.applied = append(r.applied, appliedAction{kind: "edit", target: target, ref: ref, body: body})
	return nil
}

func (r *recordTransport) EditActions(_ context.Context, target int64, ref MessageRef, _ [][]Button) error {
	r.applied = append(r.applied, appliedAction{kind: "edit-actions", target: target, ref: ref})
	return nil
}

func (r *recordTransport) AnswerCallback(_ context.Context, id, text string) error {
	r.applied = append(r.applied, appliedAction{kind: "answer", id: id, text: text})
	return nil
}

func newDispatcher() (*Dispatcher, *fakeAuth, *fakeCodes, *recordTransport) {
	auth := &fakeAuth{authorized: map[int64]bool{}, owners: map[int64]bool{}}
	codes := &fakeCodes{}
	tp := &recordTransport{}
	d := &Dispatcher{Auth: auth, Codes: codes, Transport: tp, Log: zerolog.Nop()}
	return d, auth, codes, tp
}

// ----- Text -----

func TestHandleText_AuthorizedReachesPipeline(t *testing.T) {
	d, auth, codes, tp := newDispatcher()
	auth.authorized[100] = true
	codes.submitOut = []OutboundAction{SendMessage{Target: 100, Body: "Send successful"}}

	d.HandleText(context.Background(), TextMessage{Sender: 100, Text: "code12345"})

	if !codes.submitCalled || codes.submitSender != 100 || codes.submitText != "code12345" {
		t.Fatalf("submit not routed: %+v", codes)
	}
	if len(tp.applied) != 1 || tp.applied[0].body != "Send successful" {
		t.Fatalf("returned actions not applied: %+v", tp.applied)
	}
}

func TestHandleText_UnauthorizedDroppedSilently(t *testing.T) {
	d, _, codes, tp := newDispatcher()

	d.HandleText(context.Background(), TextMessage{Sender: 100, Text: "code12345"})

	if codes.submitCalled {
		t.Fatalf("unauthorized text must not reach the pipeline")
	}
	if len(tp.applied) != 0 {
		t.Fatalf("unauthorized text must produce no output, got %+v", tp.applied)
	}
}

func TestHandleText_EngineErrorStopsQuietly(t *testing.T) {
	d, auth, codes, tp := newDispatcher()
	auth.authorized[100] = true
	codes.submitErr = errors.New("db down")

	d.HandleText(context.Background(), TextMessage{Sender: 100, Text: "code12345"})

	if len(tp.applied) != 0 {
		t.Fatalf("failed event must not emit actions, got %+v", tp.applied)
	}
}

// ----- Commands -----

func TestHandleCommand_AuthForwardsArgs(t *testing.T) {
	d, auth, _, _ := newDispatcher()

	d.HandleCommand(context.Background(), Command{Sender: 100, Name: "auth", Args: []string{"s3cret"}})

	if auth.requestSender != 100 || len(auth.requestArgs) != 1 || auth.requestArgs[0] != "s3cret" {
		t.Fatalf("auth command not routed: sender=%d args=%v", auth.requestSender, auth.requestArgs)
	}
}

func TestHandleCommand_HistoryOwnerOnly(t *testing.T) {
	d, auth, codes, _ := newDispatcher()

	d.HandleCommand(context.Background(), Command{Sender: 100, Name: "h", Args: []string{"cod"}})
	if codes.historyCalled {
		t.Fatalf("non-owner must not reach history")
	}

	auth.owners[100] = true
	d.HandleCommand(context.Background(), Command{Sender: 100, Name: "h", Args: []string{"cod"}})
	if !codes.historyCalled || codes.historySender != 100 || codes.historyArgs[0] != "cod" {
		t.Fatalf("owner history not routed: %+v", codes)
	}
}

func TestHandleCommand_DelParsesTarget(t *testing.T) {
	d, auth, _, tp := newDispatcher()
	auth.owners[1] = true

	d.HandleCommand(context.Background(), Command{Sender: 1, Name: "del", Args: []string{"100"}})
	if !auth.revokeCalled || auth.revokeAdmin != 1 || auth.revokeTarget != 100 {
		t.Fatalf("del not routed: %+v", auth)
	}

	auth.revokeCalled = false
	d.HandleCommand(context.Background(), Command{Sender: 1, Name: "del", Args: []string{"notanumber"}})
	if auth.revokeCalled {
		t.Fatalf("non-numeric target must not revoke")
	}
	if len(tp.applied) != 1 || tp.applied[0].body != "Query format error." {
		t.Fatalf("expected format error reply, got %+v", tp.applied)
	}

	// non-owner gets nothing, not even the format error
	tp.applied = nil
	d.HandleCommand(context.Background(), Command{Sender: 2, Name: "del", Args: []string{"x"}})
	if len(tp.applied) != 0 {
		t.Fatalf("non-owner del must be silent, got %+v", tp.applied)
	}
}

func TestHandleCommand_UnknownIgnored(t *testing.T) {
	d, _, _, tp := newDispatcher()

	d.HandleCommand(context.Background(), Command{Sender: 100, Name: "start"})
	if len(tp.applied) != 0 {
		t.Fatalf("unknown command must be ignored, got %+v", tp.applied)
	}
}

// ----- Callbacks -----

func TestHandleCallback_ToggleRouted(t *testing.T) {
	d, _, codes, _ := newDispatcher()

	ev := CallbackAction{Sender: 100, ID: "cb1", Origin: 100, Ref: 7, Data: "m code12345 42"}
	d.HandleCallback(context.Background(), ev)

	if !codes.toggleCalled {
		t.Fatalf("mark payload must route to toggle")
	}
	if codes.toggleCB.Kind != CallbackMark || codes.toggleCB.Code != "code12345" || codes.toggleCB.Ref != 42 {
		t.Fatalf("unexpected decoded payload: %+v", codes.toggleCB)
	}
}

func TestHandleCallback_DecisionOwnerOnly(t *testing.T) {
	d, auth, _, _ := newDispatcher()

	ev := CallbackAction{Sender: 100, ID: "cb1", Origin: 100, Ref: 7, Data: "account grant 200"}
	d.HandleCallback(context.Background(), ev)
	if auth.decideCalled {
		t.Fatalf("non-owner press must not reach Decide")
	}

	auth.owners[100] = true
	d.HandleCallback(context.Background(), ev)
	if !auth.decideCalled || auth.decideCB.Kind != CallbackGrant || auth.decideCB.UserID != 200 {
		t.Fatalf("owner decision not routed: %+v", auth.decideCB)
	}
}

func TestHandleCallback_IgnoreClearsPrompt(t *testing.T) {
	d, _, _, tp := newDispatcher()

	ev := CallbackAction{Sender: 1, ID: "cb1", Origin: 1, Ref: 7, Data: "ignore"}
	d.HandleCallback(context.Background(), ev)

	if len(tp.applied) != 2 {
		t.Fatalf("expected clear + answer, got %+v", tp.applied)
	}
	if tp.applied[0].kind != "edit-actions" || tp.applied[0].ref != 7 {
		t.Fatalf("expected action clear, got %+v", tp.applied[0])
	}
	if tp.applied[1].kind != "answer" || tp.applied[1].text != "" {
		t.Fatalf("expected plain answer, got %+v", tp.applied[1])
	}
}

func TestHandleCallback_UndecodablePayloadIsStale(t *testing.T) {
	d, _, codes, tp := newDispatcher()

	ev := CallbackAction{Sender: 100, ID: "cb1", Origin: 100, Ref: 7, Data: "garbage payload here extra"}
	d.HandleCallback(context.Background(), ev)

	if codes.toggleCalled {
		t.Fatalf("undecodable payload must not reach an engine")
	}
	if len(tp.applied) != 2 {
		t.Fatalf("expected clear + stale answer, got %+v", tp.applied)
	}
	if tp.applied[1].kind != "answer" || tp.applied[1].text != "Out of dated" {
		t.Fatalf("expected 'Out of dated' answer, got %+v", tp.applied[1])
	}
}

func TestApply_StopsOnTransportError(t *testing.T) {
	d, auth, codes, tp := newDispatcher()
	auth.authorized[100] = true
	codes.submitOut = []OutboundAction{
		SendMessage{Target: 100, Body: "first"},
		SendMessage{Target: 100, Body: "second"},
	}
	tp.sendErr = errors.New("transport down")

	d.HandleText(context.Background(), TextMessage{Sender: 100, Text: "code12345"})

	if len(tp.applied) != 0 {
		t.Fatalf("failed send must stop the action list, got %+v", tp.applied)
	}
}
