package app

import (
	"fmt"
	"time"

	"cipher_chat/internal/model"

	"github.com/rivo/tview"
)

const dateLayout = "02.01.2006 15:04"

type paintFunc func(color, s string) string

func tagged(color, s string) string { return fmt.Sprintf("[%s]%s[-]", color, s) }

func plain(_, s string) string { return s }

// FormatMessage renders one chat line with tview colour tags. Author and text
// are escaped so peers cannot inject tags.
func FormatMessage(m model.Message, loc *time.Location) string {
	return format(m, loc, tagged, tview.Escape)
}

// FormatPlain renders one chat line without markup.
func FormatPlain(m model.Message, loc *time.Location) string {
	return format(m, loc, plain, func(s string) string { return s })
}

func format(m model.Message, loc *time.Location, paint paintFunc, escape func(string) string) string {
	date := ""
	if !m.Timestamp.IsZero() {
		if loc == nil {
			loc = time.Local
		}
		date = " " + m.Timestamp.In(loc).Format(dateLayout)
	}

	if m.Kind == model.KindUndecryptable {
		return paint("red", "<undecryptable message>") + date
	}

	color := "green"
	if m.FromMe {
		color = "yellow"
	}
	author := escape(m.Author)

	if m.Kind == model.KindJoin {
		return fmt.Sprintf("%s%s: 👋 %s joined the chat", paint(color, author), date, author)
	}
	return fmt.Sprintf("%s%s: %s", paint(color, author), date, escape(m.Text))
}
