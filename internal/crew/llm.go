package crew

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// TaskRunner executes a batch of specialist tasks and returns one raw text
// result per task, in the same order submitted. It never drops an entry: a
// per-task failure yields an error string so the output normalizer can
// degrade it to a neutral default.
type TaskRunner interface {
	RunAll(ctx context.Context, tasks []Task) []string
}

type llmFailureClass int

const (
	failureTimeout llmFailureClass = iota
	failureRateLimit
	failureServer
	failureClient
)

// AnthropicMessager is the subset of the Anthropic client the runner uses.
// It exists so tests can inject a fake.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

// newAnthropicClient is the package-level creator, overridable in tests.
var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// AnthropicRunner runs specialist tasks against the Claude API, dispatching
// the batch concurrently and retrying transient transport failures per task.
type AnthropicRunner struct {
	messages    AnthropicMessager
	callTimeout time.Duration
}

func NewAnthropicRunnerFromEnv() (*AnthropicRunner, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	return NewAnthropicRunner(apiKey), nil
}

func NewAnthropicRunner(apiKey string) *AnthropicRunner {
	return &AnthropicRunner{
		messages:    newAnthropicClient(apiKey),
		callTimeout: 90 * time.Second,
	}
}

// RunAll dispatches every task concurrently and joins on completion. The
// result slice is indexed by submission order, so label order is preserved
// regardless of completion order. A task that fails after retries yields
// "Task failed: <err>" at its slot; siblings are never cancelled.
func (r *AnthropicRunner) RunAll(ctx context.Context, tasks []Task) []string {
	results := make([]string, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			text, err := r.runOne(ctx, task)
			if err != nil {
				results[i] = fmt.Sprintf("Task failed: %v", err)
				return
			}
			results[i] = text
		}(i, task)
	}
	wg.Wait()
	return results
}

func (r *AnthropicRunner) runOne(ctx context.Context, task Task) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		text, err := r.callOnce(ctx, task)
		if err == nil {
			return text, nil
		}
		lastErr = err

		class := classifyTransportError(err)
		if (class == failureTimeout || class == failureRateLimit || class == failureServer) && attempt < 3 {
			if serr := sleepCtx(ctx, backoffDelay(attempt)); serr != nil {
				return "", serr
			}
			continue
		}
		break
	}
	return "", lastErr
}

func (r *AnthropicRunner) callOnce(ctx context.Context, task Task) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	system := task.System
	if system == "" {
		system = "You are a commercial real estate analyst. Respond with strict JSON only."
	}

	resp, err := r.messages.New(callCtx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   4096,
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(task.Prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response for task %s", task.Label)
	}
	return text, nil
}

func classifyTransportError(err error) llmFailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
