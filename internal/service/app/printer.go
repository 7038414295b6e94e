package app

import (
	"fmt"
	"io"
	"sync"
	"time"

	"cipher_chat/internal/model"
)

// Printer writes chat lines to w, printing each message once.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	loc     *time.Location
	printed int
}

func NewPrinter(w io.Writer, loc *time.Location) *Printer {
	return &Printer{w: w, loc: loc}
}

// Render prints the messages past the ones already printed. A list shorter
// than what was printed means the relay lost its history; it is printed
// again from the start.
func (p *Printer) Render(messages []model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(messages) < p.printed {
		p.printed = 0
	}
	for _, m := range messages[p.printed:] {
		fmt.Fprintln(p.w, FormatPlain(m, p.loc))
	}
	p.printed = len(messages)
}
