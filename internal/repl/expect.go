package repl

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/wagiedev/k-kernel-go/internal/config"
	"github.com/wagiedev/k-kernel-go/internal/errors"
)

// expect consumes output until one of patterns matches.
//
// It returns the text before the match and the index of the matching
// pattern. Complete lines are passed to s as they arrive; the remainder is
// flushed when the match is found. On failure the returned text holds
// everything consumed so far, and the unread tail stays pending.
//
// A nil deadline means no timeout; timeout is only used for the error.
func (w *Wrapper) expect(
	ctx context.Context,
	deadline <-chan time.Time,
	timeout time.Duration,
	patterns []*regexp.Regexp,
	s *streamer,
) (string, int, error) {
	var consumed strings.Builder

	for {
		if idx, loc := firstMatch(w.pending, patterns); idx >= 0 {
			before := w.pending[:loc[0]]
			w.pending = w.pending[loc[1]:]

			s.flush(before)
			consumed.WriteString(before)

			return consumed.String(), idx, nil
		}

		// A marker never spans a newline, so complete lines are safe to emit.
		if i := strings.LastIndexByte(w.pending, '\n'); i >= 0 {
			lines := w.pending[:i+1]
			w.pending = w.pending[i+1:]

			s.lines(lines)
			consumed.WriteString(lines)
		}

		select {
		case chunk, ok := <-w.output:
			if !ok {
				rest := consumed.String() + w.pending
				w.pending = ""

				return rest, -1, w.exitError(rest)
			}

			w.pending += chunk

		case <-deadline:
			w.log.Warn("Timed out waiting for prompt", "timeout", timeout)

			return consumed.String(), -1, &errors.TimeoutError{
				Timeout: timeout,
				Output:  consumed.String() + w.pending,
			}

		case <-ctx.Done():
			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				return consumed.String(), -1, &errors.TimeoutError{
					Timeout: timeout,
					Output:  consumed.String() + w.pending,
				}
			}

			return consumed.String(), -1, fmt.Errorf("%w: %w", errors.ErrInterrupted, ctx.Err())
		}
	}
}

// firstMatch returns the index of the pattern matching earliest in text and
// its location. Ties go to the pattern listed first.
func firstMatch(text string, patterns []*regexp.Regexp) (int, []int) {
	best, bestLoc := -1, []int(nil)

	for i, p := range patterns {
		loc := p.FindStringIndex(text)
		if loc == nil {
			continue
		}

		if best < 0 || loc[0] < bestLoc[0] {
			best, bestLoc = i, loc
		}
	}

	return best, bestLoc
}

// streamer hands output to the per-command callbacks.
type streamer struct {
	stream config.StreamHandler
	line   config.LineHandler
	clean  func(string) string
}

// newStreamer returns nil when there is nothing to notify, which makes
// every streamer method a no-op.
func (w *Wrapper) newStreamer(stream config.StreamHandler, line config.LineHandler) *streamer {
	if stream == nil && line == nil {
		return nil
	}

	return &streamer{stream: stream, line: line, clean: w.clean}
}

// lines emits newline-terminated text one line at a time.
func (s *streamer) lines(text string) {
	if s == nil {
		return
	}

	for l := range strings.SplitAfterSeq(text, "\n") {
		if l == "" {
			continue
		}

		s.emit(l)
	}
}

// flush emits complete lines and then any unterminated tail.
func (s *streamer) flush(text string) {
	if s == nil {
		return
	}

	i := strings.LastIndexByte(text, '\n')
	s.lines(text[:i+1])

	if tail := text[i+1:]; tail != "" {
		s.emit(tail)
	}
}

func (s *streamer) emit(text string) {
	text = s.clean(text)
	if text == "" {
		return
	}

	if s.stream != nil {
		s.stream(text)
	}

	if s.line != nil {
		s.line(strings.TrimRight(text, "\r\n"))
	}
}

// clean removes prompt sentinels and, if configured, ANSI escapes.
func (w *Wrapper) clean(text string) string {
	text = w.prompt.ReplaceAllString(text, "")

	if w.options.StripANSI {
		text = ansi.Strip(text)
	}

	return text
}
