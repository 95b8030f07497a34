// Package conversation runs the interactive question and answer loop.
package conversation

import (
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/prompt"
)

// History is the append-only record of completed exchanges of one session.
// It is a value: Append returns a new History and never changes the receiver.
type History struct {
	exchanges []models.Exchange
}

// Append returns a history extended with e
func (h History) Append(e models.Exchange) History {
	next := make([]models.Exchange, len(h.exchanges), len(h.exchanges)+1)
	copy(next, h.exchanges)
	return History{exchanges: append(next, e)}
}

// Len returns the number of exchanges
func (h History) Len() int {
	return len(h.exchanges)
}

// Exchanges returns a copy of the exchanges, oldest first
func (h History) Exchanges() []models.Exchange {
	out := make([]models.Exchange, len(h.exchanges))
	copy(out, h.exchanges)
	return out
}

// String renders the history block used in prompts
func (h History) String() string {
	return prompt.FormatHistory(h.exchanges)
}
