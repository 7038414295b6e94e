package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cipher_chat/internal/config"
	"cipher_chat/internal/model"
	"cipher_chat/internal/session"
	"cipher_chat/internal/syncloop"
	"cipher_chat/internal/transport"
	"cipher_chat/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageLogin = "login"
	pageChat  = "chat"
	pageError = "error"

	connectTimeout = 30 * time.Second
)

type (
	App struct {
		app     *tview.Application
		pages   *tview.Pages
		form    *tview.Form
		chatbox *tview.TextView
		input   *tview.InputField

		cfg *config.Client

		// stopped is closed once the event loop has exited
		stopped chan struct{}

		mu      sync.Mutex
		conn    *connection
		joining bool
		closed  bool
	}

	// connection is one joined chat and its running sync loop.
	connection struct {
		session   *session.Session
		transport transport.Transport
		cancel    context.CancelFunc
		done      chan struct{}
	}

	// chatRenderer redraws the chat box from the loop goroutine.
	chatRenderer struct {
		c    *App
		conn *connection
	}
)

func NewApp(cfg *config.Client) *App {
	c := &App{
		app:     tview.NewApplication(),
		cfg:     cfg,
		stopped: make(chan struct{}),
	}
	c.buildUI()
	return c
}

// Run blocks until the user quits, then tears down any open connection.
func (c *App) Run() error {
	err := c.app.SetRoot(c.pages, true).SetFocus(c.form).Run()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	close(c.stopped)

	c.disconnect()
	return err
}

// queue runs fn on the UI goroutine and waits for it, unless the event loop
// has exited, in which case fn is dropped.
func (c *App) queue(fn func()) {
	done := make(chan struct{})
	go func() {
		c.app.QueueUpdateDraw(fn)
		close(done)
	}()

	select {
	case <-done:
	case <-c.stopped:
	}
}

// current reports whether conn is still the active connection.
func (c *App) current(conn *connection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

func (c *App) buildUI() {
	c.form = tview.NewForm().
		AddInputField("Chat name", "", 40, nil, nil).
		AddInputField("Your name", "", 40, nil, nil)
	c.form.AddButton("Connect", c.submitLogin).
		AddButton("Quit", c.app.Stop)
	c.form.SetBorder(true).SetTitle(" Join a chat ")

	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true)

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message (Ctrl-D to leave) ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.input.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		go c.send(text)
	})

	c.input.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlD {
			go c.leave()
			return nil
		}
		return event
	})

	chat := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	c.pages = tview.NewPages().
		AddPage(pageChat, chat, true, false).
		AddPage(pageLogin, c.form, true, true)
}

func (c *App) submitLogin() {
	chatName := c.form.GetFormItemByLabel("Chat name").(*tview.InputField).GetText()
	userName := c.form.GetFormItemByLabel("Your name").(*tview.InputField).GetText()

	c.form.SetTitle(" Connecting... ")
	// key derivation is slow; keep it off the UI goroutine
	go c.join(chatName, userName)
}

// join connects and switches to the chat view. Only one join or connection
// exists at a time; extra calls return without doing anything.
func (c *App) join(chatName, userName string) {
	c.mu.Lock()
	if c.joining || c.conn != nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.joining = true
	c.mu.Unlock()

	conn, err := c.connect(chatName, userName)

	c.mu.Lock()
	c.joining = false
	if err == nil && c.closed {
		c.mu.Unlock()
		conn.close()
		return
	}
	if err == nil {
		c.conn = conn
	}
	c.mu.Unlock()

	if err != nil {
		log.Warn("connect failed", zap.Error(err))
		c.queue(func() {
			c.form.SetTitle(" Join a chat ")
			c.showError(connectErrorText(err))
		})
		return
	}

	c.queue(func() {
		c.form.SetTitle(" Join a chat ")
		if !c.current(conn) {
			return
		}
		c.chatbox.SetTitle(fmt.Sprintf(" %s as %s ", strings.TrimSpace(chatName), conn.session.DisplayName()))
		c.renderMessages(conn.session.Messages())
		c.pages.SwitchToPage(pageChat)
		c.app.SetFocus(c.input)
	})
}

func (c *App) connect(chatName, userName string) (*connection, error) {
	codec, err := c.cfg.NewCodec()
	if err != nil {
		return nil, err
	}
	tr, err := c.cfg.NewTransport()
	if err != nil {
		return nil, err
	}

	s := session.New(codec, tr)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if _, err := s.Connect(ctx, chatName, userName); err != nil {
		tr.Close()
		return nil, err
	}

	loopCtx, stop := context.WithCancel(context.Background())
	conn := &connection{
		session:   s,
		transport: tr,
		cancel:    stop,
		done:      make(chan struct{}),
	}

	opts := append(c.cfg.LoopOptions(), syncloop.WithStateObserver(func(st syncloop.State) {
		c.observeState(conn, st)
	}))
	loop := syncloop.New(s, tr, chatRenderer{c: c, conn: conn}, opts...)

	go func() {
		defer close(conn.done)
		if err := loop.Run(loopCtx); err != nil {
			log.Error("sync loop failed", zap.Error(err))
		}
	}()

	log.Info("connected", zap.String("channel", s.ChannelID().String()))
	return conn, nil
}

func (c *App) send(text string) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := conn.session.Send(ctx, text); err != nil {
		log.Warn("send failed", zap.Error(err))
		c.queue(func() {
			c.input.SetTitle(" Send failed, press Enter to retry ")
		})
		return
	}

	c.queue(func() {
		c.input.SetText("")
		c.input.SetTitle(" New Message (Ctrl-D to leave) ")
	})
}

// leave tears down the connection and goes back to the login form.
func (c *App) leave() {
	c.disconnect()
	c.queue(func() {
		c.chatbox.Clear()
		c.input.SetText("")
		c.pages.SwitchToPage(pageLogin)
		c.app.SetFocus(c.form)
	})
}

func (c *App) disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.close()
	}
}

// close cancels the sync loop, waits for it to return and forgets the keys.
func (conn *connection) close() {
	conn.cancel()
	<-conn.done
	conn.session.Disconnect()
	if err := conn.transport.Close(); err != nil {
		log.Debug("transport close", zap.Error(err))
	}
}

func (c *App) observeState(conn *connection, s syncloop.State) {
	title := " New Message (Ctrl-D to leave) "
	if s == syncloop.StateBackoff {
		title = " Connection lost, retrying... "
	}
	c.queue(func() {
		if c.current(conn) {
			c.input.SetTitle(title)
		}
	})
}

func (c *App) renderMessages(messages []model.Message) {
	c.chatbox.Clear()
	for _, m := range messages {
		fmt.Fprintln(c.chatbox, FormatMessage(m, time.Local))
	}
	c.chatbox.ScrollToEnd()
}

func (c *App) showError(text string) {
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			c.pages.RemovePage(pageError)
			c.app.SetFocus(c.form)
		})
	c.pages.AddPage(pageError, modal, false, true)
}

func (r chatRenderer) Render(messages []model.Message) {
	r.c.queue(func() {
		if r.c.current(r.conn) {
			r.c.renderMessages(messages)
		}
	})
}

func connectErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyCredentials):
		return "Chat name and your name are both required."
	case transport.IsTransient(err):
		return "Could not reach the chat server. Try again later."
	default:
		return "Connect failed: " + err.Error()
	}
}
