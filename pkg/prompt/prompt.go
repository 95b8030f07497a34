// Package prompt builds the instruction text sent to the language model.
package prompt

import (
	"strings"

	"github.com/andrew/mhw-rag/pkg/models"
)

// TimestampLayout formats exchange times in the history block
const TimestampLayout = "2006-01-02 15:04:05"

const (
	partSep = "\n\n"
	rule    = "----"
)

func join(parts ...string) string {
	return strings.Join(parts, partSep) + partSep
}

// Compose merges the context block, cached history and question into one prompt
func Compose(context, query, history string) string {
	return join(
		"You are a knowledgeable assistant.",
		"Use the following context and previous cached chat history to answer the question.",
		rule,
		"Context:",
		context,
		rule,
		"Cached Chat History: "+history,
		"(If the chat history is empty, just ignore it)",
		rule,
		"Answer the question: "+query,
	)
}

// FormatExchange renders a past exchange for the history block
func FormatExchange(e models.Exchange) string {
	return join(
		"The following is a previous user query and your answer at the following time: "+e.Timestamp.Format(TimestampLayout)+".",
		"User's previous query:",
		e.Query,
		"Your previous answer:",
		e.Answer,
	)
}

// FormatHistory renders exchanges oldest first
func FormatHistory(exchanges []models.Exchange) string {
	var b strings.Builder
	for _, e := range exchanges {
		b.WriteString(FormatExchange(e))
	}
	return b.String()
}

// Fit composes a prompt no longer than maxChars characters by leaving out
// the oldest exchanges. It returns the prompt and how many exchanges were
// left out. maxChars <= 0 disables the limit. Context and query are never
// cut, so the result may still exceed maxChars when they alone do.
func Fit(context, query string, exchanges []models.Exchange, maxChars int) (string, int) {
	full := Compose(context, query, FormatHistory(exchanges))
	if maxChars <= 0 || runeLen(full) <= maxChars {
		return full, 0
	}

	budget := maxChars - runeLen(Compose(context, query, ""))
	kept := 0
	used := 0
	for i := len(exchanges) - 1; i >= 0; i-- {
		n := runeLen(FormatExchange(exchanges[i]))
		if used+n > budget {
			break
		}
		used += n
		kept++
	}
	dropped := len(exchanges) - kept
	return Compose(context, query, FormatHistory(exchanges[dropped:])), dropped
}

func runeLen(s string) int {
	return len([]rune(s))
}
