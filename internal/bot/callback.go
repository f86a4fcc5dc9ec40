package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CallbackKind is the closed set of actions a button payload can encode.
type CallbackKind int

const (
	// CallbackIgnore clears the action set with no further effect.
	CallbackIgnore CallbackKind = iota
	// CallbackMark marks a passcode as fully redeemed.
	CallbackMark
	// CallbackUnmark undoes a fully-redeemed mark.
	CallbackUnmark
	// CallbackGrant approves a pending authorization request.
	CallbackGrant
	// CallbackDeny rejects a pending authorization request.
	CallbackDeny
	// CallbackRevoke withdraws a previously granted authorization.
	CallbackRevoke
)

// ErrStaleAction is returned for payloads that do not decode into the closed
// set above, and by the engines when a decoded action refers to state that
// has since changed.
var ErrStaleAction = errors.New("stale callback action")

// Callback is a decoded button payload.
type Callback struct {
	Kind CallbackKind

	// Code and Ref are set for mark/unmark payloads: the passcode text and
	// the broadcast post holding it.
	Code string
	Ref  MessageRef

	// UserID is set for account payloads: the user the decision is about.
	UserID int64
}

// ParseCallback decodes a raw payload string. The wire format is
// space-separated tokens:
//
//	m <code> <ref>
//	u <code> <ref>
//	account grant|deny|revoke <userId>
//	ignore
//
// Anything else is rejected with ErrStaleAction rather than indexed into.
func ParseCallback(data string) (Callback, error) {
	fields := strings.Fields(data)
	switch len(fields) {
	case 1:
		if fields[0] == "ignore" {
			return Callback{Kind: CallbackIgnore}, nil
		}
	case 3:
		if fields[0] == "account" {
			id, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				break
			}
			switch fields[1] {
			case "grant":
				return Callback{Kind: CallbackGrant, UserID: id}, nil
			case "deny":
				return Callback{Kind: CallbackDeny, UserID: id}, nil
			case "revoke":
				return Callback{Kind: CallbackRevoke, UserID: id}, nil
			}
			break
		}
		ref, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			break
		}
		switch fields[0] {
		case "m":
			return Callback{Kind: CallbackMark, Code: fields[1], Ref: ref}, nil
		case "u":
			return Callback{Kind: CallbackUnmark, Code: fields[1], Ref: ref}, nil
		}
	}
	return Callback{}, ErrStaleAction
}

// Encode renders the payload in the wire format above. The output must stay
// bit-for-bit stable; deployed prompts carry it in their buttons.
func (c Callback) Encode() string {
	switch c.Kind {
	case CallbackMark:
		return fmt.Sprintf("m %s %d", c.Code, c.Ref)
	case CallbackUnmark:
		return fmt.Sprintf("u %s %d", c.Code, c.Ref)
	case CallbackGrant:
		return fmt.Sprintf("account grant %d", c.UserID)
	case CallbackDeny:
		return fmt.Sprintf("account deny %d", c.UserID)
	case CallbackRevoke:
		return fmt.Sprintf("account revoke %d", c.UserID)
	default:
		return "ignore"
	}
}
