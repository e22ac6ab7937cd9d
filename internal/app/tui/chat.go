// Package tui は Subject に対して対話的に質問するターミナル UI を提供する。
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/mo"

	"github.com/jinford/pdf-rag/internal/core/ask"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// Asker は TUI から使う質問応答の操作
type Asker interface {
	Ask(ctx context.Context, params ask.AskParams) (*ask.AskResult, error)
}

// deltaMsg は回答の断片
type deltaMsg string

// answerMsg は回答生成の完了
type answerMsg struct {
	result *ask.AskResult
	err    error
}

type turn struct {
	question string
	answer   strings.Builder
	sources  []ask.SourceReference
	err      error
}

// Model はチャット画面の Bubble Tea モデル
type Model struct {
	ctx         context.Context
	asker       Asker
	subject     string
	topK        int
	showSources bool

	input    textinput.Model
	viewport viewport.Model
	turns    []*turn
	stream   <-chan tea.Msg
	cancel   context.CancelFunc
	done     chan struct{}
	status   string
	ready    bool
}

// Option は Model のオプション設定
type Option func(*Model)

// WithTopK は検索件数を設定する
func WithTopK(topK int) Option {
	return func(m *Model) {
		m.topK = topK
	}
}

// WithShowSources は回答の下に参照チャンクを表示する
func WithShowSources(show bool) Option {
	return func(m *Model) {
		m.showSources = show
	}
}

// New は subject に質問するチャットモデルを作成する
func New(ctx context.Context, asker Asker, subject string, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "質問を入力して Enter"
	ti.Focus()
	ti.CharLimit = 0

	m := Model{
		ctx:      ctx,
		asker:    asker,
		subject:  subject,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Ctrl+C で終了",
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.ctx == nil {
		m.ctx = context.Background()
	}
	return m
}

// Init はカーソルの点滅を開始する
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update はキー入力と回答の断片を処理する
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, status, input
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.abort()
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}

	case deltaMsg:
		if t := m.current(); t != nil {
			t.answer.WriteString(string(msg))
			m.refresh()
		}
		return m, waitForStream(m.stream)

	case answerMsg:
		m.stream = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if t := m.current(); t != nil {
			t.err = msg.err
			if msg.err == nil {
				// ストリーム中に受け取った断片と最終結果を揃える
				t.answer.Reset()
				t.answer.WriteString(msg.result.Answer)
				t.sources = msg.result.Sources
			}
		}
		if msg.err != nil {
			m.status = "エラー: " + failure.Name(msg.err)
		} else {
			m.status = "Ctrl+C で終了"
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View は画面全体を描画する
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Chat with your PDF") + " " + subjectStyle.Render("["+m.subject+"]")
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

// Busy は回答生成中かどうかを返す
func (m Model) Busy() bool {
	return m.stream != nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.Busy() {
		return m, nil
	}
	m.input.Reset()
	m.turns = append(m.turns, &turn{question: question})
	m.status = "回答を生成中..."

	stream := make(chan tea.Msg, 64)
	done := make(chan struct{})
	turnCtx, cancel := context.WithCancel(m.ctx)
	m.stream = stream
	m.cancel = cancel
	m.done = done

	send := func(msg tea.Msg) {
		select {
		case stream <- msg:
		case <-turnCtx.Done():
		}
	}

	params := ask.AskParams{
		Subject:  m.subject,
		Question: question,
		OnDelta: func(delta string) {
			send(deltaMsg(delta))
		},
	}
	if m.topK > 0 {
		params.TopK = mo.Some(m.topK)
	}

	go func() {
		defer close(done)
		defer close(stream)
		result, err := m.asker.Ask(turnCtx, params)
		send(answerMsg{result: result, err: err})
	}()

	m.refresh()
	return m, waitForStream(stream)
}

// Wait は実行中の回答生成が終わるまで待つ
func (m Model) Wait() {
	if m.done != nil {
		<-m.done
	}
}

// abort は実行中の回答生成をキャンセルする
func (m *Model) abort() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m Model) current() *turn {
	if len(m.turns) == 0 {
		return nil
	}
	return m.turns[len(m.turns)-1]
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return hintStyle.Render(fmt.Sprintf("%q に取り込んだ PDF について質問できます。", m.subject))
	}

	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("Q: " + t.question))
		b.WriteString("\n")
		if t.err != nil {
			b.WriteString(errorStyle.Render("回答の生成に失敗しました: " + t.err.Error()))
			continue
		}
		b.WriteString(t.answer.String())
		if m.showSources && len(t.sources) > 0 {
			b.WriteString("\n")
			for j, src := range t.sources {
				b.WriteString(hintStyle.Render(fmt.Sprintf("\n[%d] %s (%.4f) %s", j+1, src.ID, src.Score, src.Excerpt)))
			}
		}
	}
	return b.String()
}

// waitForStream は次のメッセージを待つ。チャネルが閉じられたら nil を返す
func waitForStream(stream <-chan tea.Msg) tea.Cmd {
	if stream == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-stream
		if !ok {
			return nil
		}
		return msg
	}
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	subjectStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
