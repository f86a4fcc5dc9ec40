// Package services – PasscodeService
//
// This file implements the code submission pipeline: it validates incoming
// text against the passcode pattern, deduplicates against the store,
// forwards new codes to the broadcast channel, records submission history,
// and tracks the fully-redeemed flag behind inline toggle actions.
//
// Concurrency: store access runs behind a single service mutex, so a second
// concurrent submitter of the same code blocks until the first insert is
// visible and then takes the duplicate path. The transport send is kept
// outside the lock; the primary key on the normalized value is the final
// backstop for the race window between check and insert, and a lost race is
// folded back into the duplicate path.
//
// The two extension hooks (OnSubmitted, OnRedemptionChanged) are best-effort:
// they complete before the user-visible acknowledgment, but a hook error is
// logged and swallowed rather than failing the submission.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/passfwd/passfwd/internal/bot"
	"github.com/passfwd/passfwd/internal/domain"
	"github.com/passfwd/passfwd/internal/metrics"
	"github.com/passfwd/passfwd/internal/repo"
)

// passcodeRE is the syntactic contract for a valid code: 5 to 35 word
// characters, nothing else.
var passcodeRE = regexp.MustCompile(`^\w{5,35}$`)

const (
	// singleLineMax is the stricter user-facing cap applied to single-line
	// submissions before the pattern check.
	singleLineMax = 30
	// batchLineMax is the per-line cap for multi-line submissions.
	batchLineMax = 35
)

// PasscodeService coordinates validation, deduplication, broadcasting, and
// redemption tracking of passcodes.
type PasscodeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Transport posts to the broadcast channel and sends status notices.
	Transport bot.Transport
	// ChannelID is the broadcast channel identifier.
	ChannelID int64
	// SendInterval is the pacing delay between successive successful batch
	// sends. Zero or negative disables pacing.
	SendInterval time.Duration

	// OnSubmitted, when set, runs after each newly accepted code is
	// persisted and before the submission is acknowledged.
	OnSubmitted func(ctx context.Context, code string) error
	// OnRedemptionChanged, when set, runs after a redemption flag flip.
	OnRedemptionChanged func(ctx context.Context, code string, fullyRedeemed bool) error

	mu sync.Mutex
}

// ValidateCode checks a candidate against the length cap and the passcode
// pattern, returning ErrCodeTooLong or ErrCodeFormat.
func ValidateCode(text string, maxLen int) error {
	if len(text) > maxLen {
		return ErrCodeTooLong
	}
	if !passcodeRE.MatchString(text) {
		return ErrCodeFormat
	}
	return nil
}

// Submit processes a raw text message from an authorized sender. Text with a
// newline takes the multi-line path; otherwise it is validated, checked
// against the store, and either forwarded to the channel or answered with a
// redemption toggle offer.
func (s *PasscodeService) Submit(ctx context.Context, sender int64, text string) ([]bot.OutboundAction, error) {
	tr := otel.Tracer("services/PasscodeService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.Int64("user.id", sender)),
	)
	defer span.End()

	if strings.Contains(text, "\n") {
		return s.submitBatch(ctx, sender, text)
	}

	if err := ValidateCode(text, singleLineMax); err != nil {
		metrics.InvalidTotal.Inc()
		if errors.Is(err, ErrCodeTooLong) {
			return reply(sender, "Passcode length exceed"), nil
		}
		return reply(sender, "Passcode format error"), nil
	}

	s.mu.Lock()
	existing, err := repo.GetPasscode(ctx, s.DB, text)
	s.mu.Unlock()
	if err == nil {
		metrics.DuplicateTotal.Inc()
		return s.toggleOffer(sender, text, existing), nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	ref, err := s.Transport.Send(ctx, s.ChannelID, codeBody(text), bot.FormatHTML, nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, err = repo.CreatePasscode(ctx, s.DB, text, ref)
	if err == nil {
		err = repo.AppendHistory(ctx, s.DB, text, sender)
	}
	s.mu.Unlock()
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost the race to a concurrent submitter; fold into the duplicate
		// path. The extra channel post stays (no compensating rollback).
		s.mu.Lock()
		existing, qerr := repo.GetPasscode(ctx, s.DB, text)
		s.mu.Unlock()
		if qerr != nil {
			return nil, qerr
		}
		metrics.DuplicateTotal.Inc()
		return s.toggleOffer(sender, text, existing), nil
	}
	if err != nil {
		return nil, err
	}

	metrics.SubmittedTotal.Inc()
	s.fireSubmitted(ctx, text)
	return reply(sender, "Send successful"), nil
}

// submitBatch processes each line of a multi-line submission independently
// and in order. Blank lines and #-comments are skipped; invalid lines go to
// the errors list and existing codes to the duplicates list. Successful
// sends are paced by SendInterval, and a status notice precedes the first
// one. One summary reply (or edit of the notice) closes the batch.
func (s *PasscodeService) submitBatch(ctx context.Context, sender int64, text string) ([]bot.OutboundAction, error) {
	tr := otel.Tracer("services/PasscodeService")
	ctx, span := tr.Start(ctx, "submitBatch",
		trace.WithAttributes(attribute.Int64("user.id", sender)),
	)
	defer span.End()

	var limiter *rate.Limiter
	if s.SendInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.SendInterval), 1)
	}

	var (
		count          int
		errorCodes     []string
		duplicateCodes []string
		statusRef      bot.MessageRef
		haveStatus     bool
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := ValidateCode(line, batchLineMax); err != nil {
			metrics.InvalidTotal.Inc()
			errorCodes = append(errorCodes, line)
			continue
		}

		s.mu.Lock()
		_, err := repo.GetPasscode(ctx, s.DB, line)
		s.mu.Unlock()
		if err == nil {
			metrics.DuplicateTotal.Inc()
			duplicateCodes = append(duplicateCodes, line)
			continue
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}

		if !haveStatus {
			ref, serr := s.Transport.Send(ctx, sender, "Sending passcode (interval: 2s)", bot.FormatPlain, nil)
			if serr != nil {
				return nil, serr
			}
			statusRef, haveStatus = ref, true
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		ref, err := s.Transport.Send(ctx, s.ChannelID, codeBody(line), bot.FormatHTML, nil)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		_, err = repo.CreatePasscode(ctx, s.DB, line, ref)
		if err == nil {
			err = repo.AppendHistory(ctx, s.DB, line, sender)
		}
		s.mu.Unlock()
		if errors.Is(err, repo.ErrDuplicate) {
			metrics.DuplicateTotal.Inc()
			duplicateCodes = append(duplicateCodes, line)
			continue
		}
		if err != nil {
			return nil, err
		}

		count++
		metrics.SubmittedTotal.Inc()
		s.fireSubmitted(ctx, line)
	}

	body := fmt.Sprintf("%s\n%s\nSuccess send: %d passcode(s)",
		parseCodes(errorCodes, "Error"), parseCodes(duplicateCodes, "Duplicate"), count)
	if haveStatus {
		return []bot.OutboundAction{
			bot.EditMessage{Target: sender, Ref: statusRef, Body: body, Format: bot.FormatHTML},
		}, nil
	}
	return []bot.OutboundAction{
		bot.SendMessage{Target: sender, Body: body, Format: bot.FormatHTML},
	}, nil
}

// Toggle flips the fully-redeemed flag named by a mark/unmark callback,
// edits the broadcast post to match, and clears the inline action. A toggle
// for a code the store no longer knows is reported as stale.
func (s *PasscodeService) Toggle(ctx context.Context, ev bot.CallbackAction, cb bot.Callback) ([]bot.OutboundAction, error) {
	tr := otel.Tracer("services/PasscodeService")
	ctx, span := tr.Start(ctx, "Toggle",
		trace.WithAttributes(attribute.String("code", cb.Code)),
	)
	defer span.End()

	mark := cb.Kind == bot.CallbackMark

	s.mu.Lock()
	err := repo.SetFullyRedeemed(ctx, s.DB, cb.Code, mark)
	s.mu.Unlock()
	if errors.Is(err, repo.ErrNotFound) {
		return []bot.OutboundAction{
			bot.EditActionSet{Target: ev.Origin, Ref: ev.Ref},
			bot.AnswerCallback{ID: ev.ID, Text: "Out of dated"},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	body := codeBody(cb.Code)
	if mark {
		body = fmt.Sprintf("<del>%s</del>", cb.Code)
	}
	if err := s.Transport.Edit(ctx, s.ChannelID, cb.Ref, body, bot.FormatHTML); err != nil {
		return nil, err
	}

	metrics.ToggleTotal.Inc()
	s.fireRedemptionChanged(ctx, cb.Code, mark)
	return []bot.OutboundAction{
		bot.EditActionSet{Target: ev.Origin, Ref: ev.Ref},
		bot.AnswerCallback{ID: ev.ID},
	}, nil
}

// History handles /h: a case-insensitive prefix lookup over the submission
// history, replying with the first matching submitter.
func (s *PasscodeService) History(ctx context.Context, sender int64, args []string) ([]bot.OutboundAction, error) {
	if len(args) != 1 {
		return reply(sender, "Query format error."), nil
	}

	s.mu.Lock()
	entry, err := repo.FindHistoryByPrefix(ctx, s.DB, args[0])
	s.mu.Unlock()
	if errors.Is(err, repo.ErrNotFound) {
		return reply(sender, "404 Not found"), nil
	}
	if err != nil {
		return nil, err
	}
	return reply(sender, fmt.Sprintf("Find match => %d", entry.SenderID)), nil
}

// toggleOffer builds the duplicate reply offering to flip the stored flag.
func (s *PasscodeService) toggleOffer(sender int64, text string, p *domain.Passcode) []bot.OutboundAction {
	kind := bot.CallbackMark
	verb := "mark passcode"
	if p.FullyRedeemed {
		kind = bot.CallbackUnmark
		verb = "undo mark"
	}
	payload := bot.Callback{Kind: kind, Code: text, Ref: p.MessageRef}.Encode()
	return []bot.OutboundAction{
		bot.SendMessage{
			Target: sender,
			Body:   fmt.Sprintf("Passcode exist, %s as FR?", verb),
			Actions: [][]bot.Button{{
				{Label: "Process", Data: payload},
			}},
		},
	}
}

func (s *PasscodeService) fireSubmitted(ctx context.Context, code string) {
	if s.OnSubmitted == nil {
		return
	}
	if err := s.OnSubmitted(ctx, code); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("submitted hook failed")
	}
}

func (s *PasscodeService) fireRedemptionChanged(ctx context.Context, code string, fr bool) {
	if s.OnRedemptionChanged == nil {
		return
	}
	if err := s.OnRedemptionChanged(ctx, code, fr); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("redemption hook failed")
	}
}

// codeBody wraps a passcode in fixed-width markup for the channel.
func codeBody(code string) string {
	return fmt.Sprintf("<code>%s</code>", code)
}

// parseCodes renders a labelled code block for the batch summary, or ""
// when the list is empty.
func parseCodes(codes []string, header string) string {
	if len(codes) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s codes:\n", header)
	for _, c := range codes {
		fmt.Fprintf(&b, "<code>%s</code>\n", c)
	}
	return b.String()
}

// reply is shorthand for a single plain message back to the sender.
func reply(target int64, body string) []bot.OutboundAction {
	return []bot.OutboundAction{bot.SendMessage{Target: target, Body: body}}
}
