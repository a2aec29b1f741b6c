package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MegaGrindStone/nany-chat/internal/chat"
	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const typingIndicator = "[gray::i]Typing...[-::-]"

type ui struct {
	app          *tview.Application
	mainFlex     *tview.Flex
	textView     *tview.TextView
	textArea     *tview.TextArea
	debugConsole *tview.TextView
	showDebug    bool

	chat   chat.Chat
	ctx    context.Context
	logger *slog.Logger
}

func newUI(debug bool) *ui {
	app := tview.NewApplication()
	app.EnablePaste(true)

	u := &ui{
		app:          app,
		textView:     initChatViewer(),
		textArea:     initChatInput(),
		debugConsole: initDebugConsole(),
		showDebug:    debug,
	}

	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.textView, 0, 1, false).
		AddItem(u.textArea, 6, 1, true)
	u.mainFlex = tview.NewFlex().
		AddItem(subFlex, 0, 2, true)
	if debug {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
	}

	return u
}

func initChatViewer() *tview.TextView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	textView.SetTitle("Conversation").SetBorder(true)
	textView.SetScrollable(true)
	return textView
}

func initChatInput() *tview.TextArea {
	textArea := tview.NewTextArea().
		SetPlaceholder("Type a message, Enter to send. /debug toggles the debug console, /bye quits.")
	textArea.SetTitle("Message").SetBorder(true)
	return textArea
}

func initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	console.SetTitle("Debugger").SetBorder(true)
	return console
}

// logWriter returns the writer the slog handler writes to. Everything written lands in the debug
// console, escaped so log values can't be read as color tags.
func (u *ui) logWriter() io.Writer {
	return escapeWriter{w: u.debugConsole}
}

type escapeWriter struct {
	w io.Writer
}

func (e escapeWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(e.w, tview.Escape(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// update is the transcript observer. It may be called from any goroutine.
func (u *ui) update(v chat.View) {
	u.app.QueueUpdateDraw(func() {
		u.render(v)
	})
}

func (u *ui) render(v chat.View) {
	u.textView.SetText(renderTranscript(v))
	u.textView.ScrollToEnd()
	u.textArea.SetDisabled(v.Loading)
}

func renderTranscript(v chat.View) string {
	var sb strings.Builder
	for _, msg := range v.Messages {
		switch msg.Role {
		case models.RoleUser:
			sb.WriteString("[red::]You:[-]\n")
		default:
			sb.WriteString("[green::]Nany:[-]\n")
		}
		sb.WriteString(tview.Escape(msg.Content))
		sb.WriteString("\n\n")
	}
	if v.Loading {
		sb.WriteString(typingIndicator)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (u *ui) run(ctx context.Context, c chat.Chat, logger *slog.Logger) error {
	u.ctx = ctx
	u.chat = c
	u.logger = logger.With(slog.String("module", "ui"))

	u.render(c.Transcript().View())

	u.textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter || event.Key() == tcell.KeyESC {
			u.app.SetFocus(u.textArea)
		}
		return event
	})

	u.textArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyESC:
			u.app.SetFocus(u.textView)
			return nil
		case tcell.KeyEnter:
			u.handleInput(u.textArea.GetText())
			return nil
		}
		return event
	})

	return u.app.SetRoot(u.mainFlex, true).SetFocus(u.textArea).Run()
}

func (u *ui) handleInput(content string) {
	switch strings.TrimSpace(content) {
	case "":
		return
	case "/bye":
		u.app.Stop()
		return
	case "/debug":
		u.textArea.SetText("", true)
		u.toggleDebugConsole()
		return
	}

	// Submit writes to the store before returning, keep it off the event loop.
	go func() {
		_, err := u.chat.Submit(u.ctx, content)
		if err != nil {
			if errors.Is(err, chat.ErrBusy) {
				u.logger.Warn("Response still streaming, message not sent")
				return
			}
			u.logger.Error("Failed to submit message", slog.String("err", err.Error()))
			return
		}
		u.app.QueueUpdateDraw(func() {
			u.textArea.SetText("", true)
		})
	}()
}

func (u *ui) toggleDebugConsole() {
	if u.showDebug {
		u.mainFlex.RemoveItem(u.debugConsole)
	} else {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
	}
	u.showDebug = !u.showDebug
	u.logger.Debug(fmt.Sprintf("Debug console visible: %t", u.showDebug))
}
