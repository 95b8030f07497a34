package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/andrew/mhw-rag/pkg/conversation"
)

var (
	rule     = strings.Repeat("=", 40)
	thinRule = strings.Repeat("-", 20)
)

var _ conversation.Printer = (*printer)(nil)

// printer writes the session to the terminal
type printer struct {
	out   io.Writer
	bold  *color.Color
	green *color.Color
	cyan  *color.Color
	red   *color.Color
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:   out,
		bold:  color.New(color.FgBlue, color.Bold),
		green: color.New(color.FgGreen),
		cyan:  color.New(color.FgCyan, color.Bold),
		red:   color.New(color.FgRed),
	}
}

func (p *printer) banner() {
	p.bold.Fprintln(p.out, "🌊 Marine Heatwave Discussion RAG System 🌊")
	fmt.Fprintln(p.out, rule)
}

func (p *printer) ok(format string, args ...any) {
	p.green.Fprintf(p.out, "✅ "+format+"\n", args...)
}

func (p *printer) started() {
	fmt.Fprintln(p.out, "\n"+rule)
	p.bold.Fprintln(p.out, "🤖 Interactive Mode Started")
	fmt.Fprintln(p.out, "Type 'quit', 'exit', or press Ctrl+C to stop")
	fmt.Fprintln(p.out, rule+"\n")
}

func (p *printer) Prompt() {
	p.cyan.Fprint(p.out, "🔍 Enter your question about marine heatwaves: ")
}

func (p *printer) Searching() {
	fmt.Fprintln(p.out, "\n🔎 Searching relevant documents...")
}

func (p *printer) NoContext() {
	fmt.Fprintln(p.out, "📄 No relevant documents found.")
	fmt.Fprintln(p.out, "\n"+rule+"\n")
}

func (p *printer) Found(n int) {
	fmt.Fprintf(p.out, "📄 Found %d relevant documents\n", n)
}

func (p *printer) ComposedPrompt(prompt string) {
	fmt.Fprintln(p.out, thinRule)
	fmt.Fprintln(p.out, "📝 RAG prompt:")
	fmt.Fprintln(p.out, thinRule)
	fmt.Fprintln(p.out, prompt)
	fmt.Fprintln(p.out, thinRule)
}

func (p *printer) Generating() {
	fmt.Fprintln(p.out, "🤖 Generating response...")
	fmt.Fprintln(p.out)
}

func (p *printer) Answer(answer string) {
	p.green.Fprintln(p.out, "📝 Answer:")
	fmt.Fprintln(p.out, thinRule)
	fmt.Fprintln(p.out, answer)
	fmt.Fprintln(p.out, thinRule)
	fmt.Fprintln(p.out, "\n"+rule+"\n")
}

func (p *printer) Failed(stage string, err error) {
	p.red.Fprintf(p.out, "❌ Error %s: %v\n", stage, err)
	fmt.Fprintln(p.out, "\n"+rule+"\n")
}

func (p *printer) Goodbye() {
	fmt.Fprintln(p.out, "\n👋 Thanks for using the Marine Heatwave RAG System!")
}
