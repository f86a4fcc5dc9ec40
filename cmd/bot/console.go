package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/passfwd/passfwd/internal/bot"
)

// consoleTransport is a bot.Transport that prints outbound traffic to a
// writer and hands out incrementing message references. It exists so the
// core can be driven end-to-end from a terminal when no chat client is
// attached.
type consoleTransport struct {
	mu   sync.Mutex
	out  io.Writer
	next bot.MessageRef
}

func newConsoleTransport(out io.Writer) *consoleTransport {
	return &consoleTransport{out: out, next: 1}
}

func (t *consoleTransport) Send(_ context.Context, target int64, body string, format bot.Format, actions [][]bot.Button) (bot.MessageRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ref := t.next
	t.next++
	fmt.Fprintf(t.out, "-> send target=%d ref=%d format=%q %s%s\n", target, ref, format, oneLine(body), renderButtons(actions))
	return ref, nil
}

func (t *consoleTransport) Edit(_ context.Context, target int64, ref bot.MessageRef, body string, format bot.Format) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "-> edit target=%d ref=%d format=%q %s\n", target, ref, format, oneLine(body))
	return nil
}

func (t *consoleTransport) EditActions(_ context.Context, target int64, ref bot.MessageRef, actions [][]bot.Button) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "-> edit-actions target=%d ref=%d%s\n", target, ref, renderButtons(actions))
	return nil
}

func (t *consoleTransport) AnswerCallback(_ context.Context, id, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "-> answer id=%s %s\n", id, text)
	return nil
}

func renderButtons(actions [][]bot.Button) string {
	if len(actions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(" buttons=")
	for i, row := range actions {
		if i > 0 {
			b.WriteString(";")
		}
		for j, btn := range row {
			if j > 0 {
				b.WriteString("|")
			}
			fmt.Fprintf(&b, "%s[%s]", btn.Label, btn.Data)
		}
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

// runConsole reads events from r until EOF or context cancellation.
//
// Input format, one event per line:
//
//	<sender> /auth [secret]          command
//	<sender> <text>                  text message ("\n" submits multi-line)
//	cb <sender> <origin> <ref> <payload...>   button press
func runConsole(ctx context.Context, d *bot.Dispatcher, r io.Reader) {
	sc := bufio.NewScanner(r)
	var callbackSeq int
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		if fields[0] == "cb" && len(fields) >= 5 {
			sender, err1 := strconv.ParseInt(fields[1], 10, 64)
			origin, err2 := strconv.ParseInt(fields[2], 10, 64)
			ref, err3 := strconv.ParseInt(fields[3], 10, 64)
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			callbackSeq++
			d.HandleCallback(ctx, bot.CallbackAction{
				Sender: sender,
				ID:     strconv.Itoa(callbackSeq),
				Origin: origin,
				Ref:    ref,
				Data:   strings.Join(fields[4:], " "),
			})
			continue
		}

		if len(fields) < 2 {
			continue
		}
		sender, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

		if strings.HasPrefix(text, "/") {
			parts := strings.Fields(text)
			d.HandleCommand(ctx, bot.Command{
				Sender: sender,
				Name:   strings.TrimPrefix(parts[0], "/"),
				Args:   parts[1:],
			})
			continue
		}

		d.HandleText(ctx, bot.TextMessage{
			Sender: sender,
			Text:   strings.ReplaceAll(text, `\n`, "\n"),
		})
	}
}
