// Package services – AuthService
//
// This file implements the authorization state machine. Users move between
// Unauthorized, PendingApproval, Authorized, and Revoked; the only durable
// state is the authorized-user row (absence means unauthorized), mirrored
// into the membership cache, which is the source of truth at runtime. A
// pending approval exists purely as the prompt message sitting in the owners'
// chats, so decisions always re-check current state and report stale prompts
// inline instead of failing.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/passfwd/passfwd/internal/bot"
	"github.com/passfwd/passfwd/internal/cache"
	"github.com/passfwd/passfwd/internal/metrics"
	"github.com/passfwd/passfwd/internal/repo"
)

// AuthService governs who may submit passcodes. It owns the authorized-user
// rows in the store, mirrors them into the membership cache, and keeps the
// owner set (configured ids plus a possible bootstrap owner).
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Members is the fast authorized-user set consulted on the hot path.
	Members cache.Membership
	// Guard suppresses repeated authorization requests per user.
	Guard cache.FloodGuard

	// Secret is the shared credential for self-service authorization.
	Secret string
	// FloodTTL is the cool-down window armed on each authorization request.
	FloodTTL time.Duration

	mu     sync.Mutex
	owners []int64
}

// NewAuthService constructs an AuthService with the configured owner ids.
func NewAuthService(db *gorm.DB, members cache.Membership, guard cache.FloodGuard, secret string, owners []int64, floodTTL time.Duration) *AuthService {
	if floodTTL <= 0 {
		floodTTL = 20 * time.Minute
	}
	return &AuthService{
		DB:       db,
		Members:  members,
		Guard:    guard,
		Secret:   secret,
		FloodTTL: floodTTL,
		owners:   append([]int64(nil), owners...),
	}
}

// Load rebuilds the membership cache from the store: the cache is cleared,
// then repopulated with every store-authorized user plus every owner.
// Persisted owners (bootstrap case) are merged into the configured owner set
// first, so ownership survives restarts. Call once at startup before
// handling events.
func (s *AuthService) Load(ctx context.Context) error {
	if err := s.Members.Clear(ctx); err != nil {
		return err
	}

	ids, err := repo.ListAuthorizedIDs(ctx, s.DB)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.Members.Add(ctx, id); err != nil {
			return err
		}
	}

	persisted, err := repo.ListOwnerIDs(ctx, s.DB)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, id := range persisted {
		if !containsID(s.owners, id) {
			s.owners = append(s.owners, id)
		}
	}
	owners := append([]int64(nil), s.owners...)
	s.mu.Unlock()

	if len(owners) == 0 {
		log.Warn().Msg("no owners configured; first user with the secret becomes owner")
	}
	for _, id := range owners {
		if err := s.Members.Add(ctx, id); err != nil {
			return err
		}
	}
	log.Info().Int("users", len(ids)).Int("owners", len(owners)).Msg("authorized users loaded")
	return nil
}

// IsAuthorized reports whether the user may submit codes. It is a pure cache
// lookup; cache errors are logged and treated as unauthorized.
func (s *AuthService) IsAuthorized(ctx context.Context, id int64) bool {
	ok, err := s.Members.Contains(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", id).Msg("membership lookup failed")
		return false
	}
	return ok
}

// IsOwner reports whether the user is in the owner set.
func (s *AuthService) IsOwner(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return containsID(s.owners, id)
}

// Owners returns a copy of the current owner set.
func (s *AuthService) Owners() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.owners...)
}

// RequestAccess handles /auth. Flood-guarded requests are dropped silently;
// the guard is armed on every request that reaches this method, whatever the
// outcome. Without a credential the user enters PendingApproval and every
// owner receives an approval prompt. With the correct shared secret the user
// transitions straight to Authorized; when the owner set is empty that user
// additionally becomes the sole owner (bootstrap), persisted immediately.
// A wrong credential is ignored.
func (s *AuthService) RequestAccess(ctx context.Context, sender int64, args []string) ([]bot.OutboundAction, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "RequestAccess",
		trace.WithAttributes(attribute.Int64("user.id", sender)),
	)
	defer span.End()

	guarded, err := s.Guard.Hit(ctx, sender, s.FloodTTL)
	if err != nil {
		return nil, err
	}
	if guarded {
		return nil, nil
	}
	metrics.AuthRequestTotal.Inc()

	if s.IsAuthorized(ctx, sender) {
		return []bot.OutboundAction{
			bot.SendMessage{Target: sender, Body: "Already authorized"},
		}, nil
	}

	switch {
	case len(args) == 0:
		log.Debug().Int64("user_id", sender).Msg("user requests to grant talk power")
		return s.approvalPrompts(sender), nil

	case len(args) == 1 && args[0] == s.Secret:
		s.mu.Lock()
		bootstrap := len(s.owners) == 0
		if bootstrap {
			s.owners = append(s.owners, sender)
		}
		s.mu.Unlock()

		if err := s.authorize(ctx, sender, bootstrap); err != nil {
			return nil, err
		}
		body := "Authorized"
		if bootstrap {
			body = "Authorized as owner"
		}
		return []bot.OutboundAction{
			bot.SendMessage{Target: sender, Body: body},
		}, nil
	}
	return nil, nil
}

// approvalPrompts builds one prompt per owner with Agree/Deny/Ignore buttons.
func (s *AuthService) approvalPrompts(sender int64) []bot.OutboundAction {
	grant := bot.Callback{Kind: bot.CallbackGrant, UserID: sender}.Encode()
	deny := bot.Callback{Kind: bot.CallbackDeny, UserID: sender}.Encode()
	buttons := [][]bot.Button{
		{
			{Label: "Agree", Data: grant},
			{Label: "Deny", Data: deny},
		},
		{
			{Label: "Ignore", Data: bot.Callback{Kind: bot.CallbackIgnore}.Encode()},
		},
	}
	body := fmt.Sprintf("User [%d](tg://user?id=%d) request to grant talk power", sender, sender)

	owners := s.Owners()
	actions := make([]bot.OutboundAction, 0, len(owners))
	for _, owner := range owners {
		actions = append(actions, bot.SendMessage{
			Target:  owner,
			Body:    body,
			Format:  bot.FormatMarkdown,
			Actions: buttons,
		})
	}
	return actions
}

// Decide applies an owner's grant/deny/revoke callback. ev identifies the
// prompt message carrying the pressed button; cb is the decoded payload.
func (s *AuthService) Decide(ctx context.Context, ev bot.CallbackAction, cb bot.Callback) ([]bot.OutboundAction, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Decide",
		trace.WithAttributes(
			attribute.Int64("owner.id", ev.Sender),
			attribute.Int64("target.id", cb.UserID),
		),
	)
	defer span.End()

	switch cb.Kind {
	case bot.CallbackGrant:
		metrics.AuthDecisionTotal.WithLabelValues("grant").Inc()
		revokeRow := [][]bot.Button{{
			{Label: "Revoke", Data: bot.Callback{Kind: bot.CallbackRevoke, UserID: cb.UserID}.Encode()},
		}}
		if s.IsAuthorized(ctx, cb.UserID) {
			return []bot.OutboundAction{
				bot.EditActionSet{Target: ev.Origin, Ref: ev.Ref, Actions: revokeRow},
				bot.AnswerCallback{ID: ev.ID, Text: "Already granted"},
			}, nil
		}
		if err := s.authorize(ctx, cb.UserID, false); err != nil {
			return nil, err
		}
		return []bot.OutboundAction{
			bot.EditActionSet{Target: ev.Origin, Ref: ev.Ref, Actions: revokeRow},
			bot.AnswerCallback{ID: ev.ID},
			bot.SendMessage{Target: cb.UserID, Body: "Access granted"},
		}, nil

	case bot.CallbackDeny:
		metrics.AuthDecisionTotal.WithLabelValues("deny").Inc()
		if s.IsAuthorized(ctx, cb.UserID) {
			// The user got authorized some other way since the prompt was sent.
			return []bot.OutboundAction{
				bot.EditActionSet{Target: ev.Origin, Ref: ev.Ref},
				bot.AnswerCallback{ID: ev.ID, Text: "Out of dated"},
			}, nil
		}
		return []bot.OutboundAction{
			bot.EditActionSet{Target: ev.Origin, Ref: ev.Ref},
			bot.SendMessage{Target: cb.UserID, Body: "Access denied"},
			bot.AnswerCallback{ID: ev.ID},
		}, nil

	case bot.CallbackRevoke:
		metrics.AuthDecisionTotal.WithLabelValues("revoke").Inc()
		if err := s.deauthorize(ctx, cb.UserID); err != nil {
			return nil, err
		}
		return []bot.OutboundAction{
			bot.EditActionSet{Target: ev.Origin, Ref: ev.Ref},
			bot.SendMessage{Target: cb.UserID, Body: "Access revoked"},
			bot.AnswerCallback{ID: ev.ID},
		}, nil
	}
	return nil, bot.ErrStaleAction
}

// ManualRevoke handles /del. Revoking a user that is not currently
// authorized reports "not in authorized list" and mutates nothing.
func (s *AuthService) ManualRevoke(ctx context.Context, admin, target int64) ([]bot.OutboundAction, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "ManualRevoke",
		trace.WithAttributes(
			attribute.Int64("admin.id", admin),
			attribute.Int64("target.id", target),
		),
	)
	defer span.End()

	if !s.IsAuthorized(ctx, target) {
		return []bot.OutboundAction{
			bot.SendMessage{Target: admin, Body: "User not in authorized list"},
		}, nil
	}
	metrics.AuthDecisionTotal.WithLabelValues("revoke").Inc()
	if err := s.deauthorize(ctx, target); err != nil {
		return nil, err
	}
	return []bot.OutboundAction{
		bot.SendMessage{Target: target, Body: "Access revoked"},
		bot.SendMessage{Target: admin, Body: "Success"},
	}, nil
}

// authorize persists the user and mirrors the change into the cache.
// A duplicate row is tolerated: store and cache can drift briefly when a
// decision races a secret-based authorization.
func (s *AuthService) authorize(ctx context.Context, id int64, owner bool) error {
	log.Info().Int64("user_id", id).Bool("owner", owner).Msg("insert user to database")
	if err := repo.CreateUser(ctx, s.DB, id, owner); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		return err
	}
	return s.Members.Add(ctx, id)
}

// deauthorize removes the user from store and cache.
func (s *AuthService) deauthorize(ctx context.Context, id int64) error {
	log.Info().Int64("user_id", id).Msg("delete user from database")
	if err := repo.DeleteUser(ctx, s.DB, id); err != nil {
		return err
	}
	return s.Members.Remove(ctx, id)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
