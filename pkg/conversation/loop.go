package conversation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrew/mhw-rag/pkg/llm"
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/prompt"
	"github.com/andrew/mhw-rag/pkg/retrieval"
)

// State is a phase of the conversation loop
type State int

const (
	StateInit State = iota
	StateAwaitingInput
	StateRetrieving
	StateComposing
	StateGenerating
	StateCaching
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateRetrieving:
		return "retrieving"
	case StateComposing:
		return "composing"
	case StateGenerating:
		return "generating"
	case StateCaching:
		return "caching"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome is the result of handling one query
type Outcome int

const (
	Answered Outcome = iota
	NoContext
	RetrievalFailed
	GenerationFailed
)

func (o Outcome) String() string {
	switch o {
	case Answered:
		return "answered"
	case NoContext:
		return "no_context"
	case RetrievalFailed:
		return "retrieval_failed"
	case GenerationFailed:
		return "generation_failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Config controls retrieval and prompting for each query
type Config struct {
	TopK      int
	Threshold float64
	// MaxPromptChars limits the rendered prompt by leaving out the oldest
	// history; 0 means no limit
	MaxPromptChars int
	Model          llm.ModelConfig
	// ShowPrompt echoes every composed prompt to the output
	ShowPrompt bool
}

// Printer receives user-facing output from the loop
type Printer interface {
	Prompt()
	Searching()
	NoContext()
	Found(n int)
	ComposedPrompt(p string)
	Generating()
	Answer(a string)
	Failed(stage string, err error)
	Goodbye()
}

// Loop answers queries with retrieval-augmented generation, one at a time
type Loop struct {
	retriever retrieval.Service
	llm       llm.Client
	cfg       Config
	printer   Printer
	logger    zerolog.Logger
	now       func() time.Time
	state     State
}

// NewLoop creates a loop. A nil printer discards user-facing output.
func NewLoop(retriever retrieval.Service, client llm.Client, cfg Config, printer Printer, logger zerolog.Logger) *Loop {
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if printer == nil {
		printer = nopPrinter{}
	}
	return &Loop{
		retriever: retriever,
		llm:       client,
		cfg:       cfg,
		printer:   printer,
		logger:    logger.With().Str("component", "conversation").Logger(),
		now:       time.Now,
		state:     StateInit,
	}
}

// State returns the current state
func (l *Loop) State() State {
	return l.state
}

func (l *Loop) enter(s State) {
	l.logger.Trace().Stringer("from", l.state).Stringer("to", s).Msg("state")
	l.state = s
}

// IsExit reports whether input is an exit command
func IsExit(input string) bool {
	s := strings.ToLower(strings.TrimSpace(input))
	return s == "quit" || s == "exit"
}

// Run reads one query per line from in until an exit command, end of input
// or cancellation of ctx, and returns the grown history. Per-query failures
// are logged and never end the loop.
func (l *Loop) Run(ctx context.Context, in io.Reader, h History) (History, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		l.enter(StateAwaitingInput)
		l.printer.Prompt()

		var line string
		select {
		case <-ctx.Done():
			l.terminate()
			return h, nil
		case err := <-readErr:
			l.terminate()
			if err != nil && !errors.Is(err, io.EOF) {
				return h, fmt.Errorf("reading input: %w", err)
			}
			return h, nil
		case line = <-lines:
		}

		if IsExit(line) {
			l.terminate()
			return h, nil
		}
		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}

		h, _ = l.Step(ctx, query, h)
	}
}

func (l *Loop) terminate() {
	l.enter(StateTerminated)
	l.printer.Goodbye()
}

// Step handles a single query. History grows only when the answer was generated.
func (l *Loop) Step(ctx context.Context, query string, h History) (History, Outcome) {
	log := l.logger.With().Str("query", query).Logger()

	l.enter(StateRetrieving)
	l.printer.Searching()
	res, err := l.retriever.Retrieve(ctx, query, l.cfg.TopK, l.cfg.Threshold)
	if err != nil {
		log.Error().Err(err).Msg("❌ retrieval failed")
		l.printer.Failed("retrieving documents", err)
		return h, RetrievalFailed
	}
	if res.Empty() {
		log.Info().Int("candidates", len(res.Candidates)).Msg("📄 no relevant documents")
		l.printer.NoContext()
		return h, NoContext
	}
	l.printer.Found(len(res.Results))

	l.enter(StateComposing)
	p, dropped := prompt.Fit(res.Context, query, h.exchanges, l.cfg.MaxPromptChars)
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Int("max_chars", l.cfg.MaxPromptChars).Msg("⚠️ oldest history left out of prompt")
	}
	if l.cfg.ShowPrompt {
		l.printer.ComposedPrompt(p)
	}

	l.enter(StateGenerating)
	l.printer.Generating()
	answer, err := l.llm.Generate(ctx, p, l.cfg.Model)
	if err != nil {
		log.Error().Err(err).Msg("❌ generation failed")
		l.printer.Failed("generating response", err)
		return h, GenerationFailed
	}
	l.printer.Answer(answer)

	l.enter(StateCaching)
	return h.Append(models.Exchange{Query: query, Answer: answer, Timestamp: l.now()}), Answered
}

type nopPrinter struct{}

func (nopPrinter) Prompt()               {}
func (nopPrinter) Searching()            {}
func (nopPrinter) NoContext()            {}
func (nopPrinter) Found(int)             {}
func (nopPrinter) ComposedPrompt(string) {}
func (nopPrinter) Generating()           {}
func (nopPrinter) Answer(string)         {}
func (nopPrinter) Failed(string, error)  {}
func (nopPrinter) Goodbye()              {}
