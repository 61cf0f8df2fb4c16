package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendlens/internal/core"
)

// ErrEmptyInput is returned when the expense text is empty after trimming.
// Callers are expected to reject such input before invoking.
var ErrEmptyInput = errors.New("empty expense text")

// Stream is a lazy, finite, non-restartable sequence of increasingly complete
// partial values terminating in one final schema-valid Expense or an error.
// Every value observed from Partials before Result returns is provisional and
// must be discarded if the invocation fails.
type Stream struct {
	partials chan core.PartialExpense
	done     chan struct{}
	final    core.Expense
	err      error
}

// Partials returns the channel of provisional snapshots. It is closed when
// the invocation terminates.
func (s *Stream) Partials() <-chan core.PartialExpense {
	return s.partials
}

// Result blocks until the invocation terminates and returns the final
// Expense or the terminal failure.
func (s *Stream) Result() (core.Expense, error) {
	<-s.done
	return s.final, s.err
}

// Classifier turns free-text expense descriptions into Expense records via an
// external completion service.
type Classifier struct {
	client  Client
	limiter *rateLimiter
	logger  *slog.Logger
	clock   func() time.Time
}

// NewClassifier creates a classifier on top of a provider client.
func NewClassifier(client Client, rateLimit int, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		client:  client,
		limiter: newRateLimiter(rateLimit),
		logger:  logger,
		clock:   time.Now,
	}
}

// Close releases the rate limiter.
func (c *Classifier) Close() {
	c.limiter.Close()
}

// SystemInstruction builds the fixed instruction: the allowed categories, the
// current date with weekday so relative dates resolve, and the default-date
// rule.
func SystemInstruction(now time.Time) string {
	// The run-on "OTHER.The" is intentional; the prompt text is kept
	// byte-for-byte as validated against both providers.
	return "You categorize expenses into one of the following categories: " +
		"TRAVEL, MEALS, ENTERTAINMENT, OFFICE SUPPLIES, OTHER." +
		"The current date is: " + now.Format("2006-Jan-02") + " (" + now.Format("Mon") + ")" +
		". When no date is supplied, use the current date."
}

// Classify sends the expense text to the completion service and returns a
// Stream of progressively complete partial values. The call itself fails only
// on empty input or a canceled context; provider failures terminate the
// stream. No retry is attempted: the user re-issues the action manually.
func (c *Classifier) Classify(ctx context.Context, text string) (*Stream, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	req := Request{
		System: SystemInstruction(c.clock()),
		Prompt: fmt.Sprintf("Please categorize the following expense: %q", text),
		Schema: core.ExpenseSchema(),
	}

	s := &Stream{
		partials: make(chan core.PartialExpense, 16),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.partials)

		var buf strings.Builder
		content, err := c.client.StreamCompletion(ctx, req, func(chunk string) {
			buf.WriteString(chunk)
			partial, ok := DecodePartial(buf.String())
			if !ok {
				return
			}
			select {
			case s.partials <- partial:
			default:
				// Each snapshot supersedes the previous one; a slow
				// consumer may skip intermediates.
			}
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "Classification invocation failed", "error", err)
			s.err = classifyError(err)
			return
		}

		final, err := ParseFinal(content)
		if err != nil {
			c.logger.ErrorContext(ctx, "Classification produced non-conforming output",
				"error", err,
				"content_length", len(content))
			s.err = fmt.Errorf("%w: %v", core.ErrInvocationFailed, err)
			return
		}

		c.logger.InfoContext(ctx, "Expense classified",
			"category", final.Category,
			"amount_cents", final.Amount.Cents,
			"date", final.Date)
		s.final = final
	}()

	return s, nil
}

// classifyError maps provider failures onto the error taxonomy: rate limits
// stay distinguishable, everything else is an invocation failure.
func classifyError(err error) error {
	if errors.Is(err, core.ErrRateLimited) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrInvocationFailed, err)
}
