// Package view renders session state as terminal lines.
package view

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/samber/lo"

	"github.com/omochice/roomchat/internal/session"
)

// Printer writes the parts of a state that changed since the last Render.
// The roster is printed whenever it differs; messages are printed once each.
type Printer struct {
	w        io.Writer
	colorize bool

	mu      sync.Mutex
	roster  []string
	started bool
	printed int
}

// NewPrinter returns a Printer writing to w. With colorize set, names and
// media lines are colored.
func NewPrinter(w io.Writer, colorize bool) *Printer {
	return &Printer{w: w, colorize: colorize}
}

// Render prints what changed in st. It is safe to use as a change listener.
// A snapshot older than one already rendered prints no messages.
func (p *Printer) Render(st session.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := lo.Map(st.Users, func(u session.UserProfile, _ int) string { return u.Name })
	if !p.started || !slices.Equal(names, p.roster) {
		p.writeRoster(st)
		p.roster = names
	}
	if !p.started && len(st.Messages) == 0 {
		p.line(p.paint(color.Gray, "No messages yet"))
	}
	p.started = true

	if len(st.Messages) <= p.printed {
		return
	}
	for _, m := range st.Messages[p.printed:] {
		p.writeMessage(st, m)
	}
	p.printed = len(st.Messages)
}

// Error prints a one-line notice for err.
func (p *Printer) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.line(p.paint(color.Red, "! "+err.Error()))
}

func (p *Printer) writeRoster(st session.State) {
	if len(st.Users) == 0 {
		p.line(p.paint(color.Gray, "No users online"))
		return
	}
	labels := lo.Map(st.Users, func(u session.UserProfile, _ int) string {
		if st.IsSelf(u.Name) {
			return p.paint(color.Green, u.Name+" (You)")
		}
		return p.paint(color.Cyan, u.Name)
	})
	p.line(fmt.Sprintf("Online Users (%d): %s", len(st.Users), strings.Join(labels, ", ")))
}

func (p *Printer) writeMessage(st session.State, m session.ChatMessage) {
	from := p.paint(color.Cyan, m.From)
	if st.IsSelf(m.From) {
		from = p.paint(color.Green, m.From+" (You)")
	}
	if m.IsAnimatedMedia() {
		p.line(fmt.Sprintf("[%s] %s %s", from, p.paint(color.Magenta, "[gif]"), strings.TrimSpace(m.Body)))
		return
	}
	p.line(fmt.Sprintf("[%s] %s", from, m.Body))
}

func (p *Printer) paint(c color.Color, s string) string {
	if !p.colorize {
		return s
	}
	return c.Sprint(s)
}

func (p *Printer) line(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}
