// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kirk-sfe/artemis-uploader/pkg/uploader"
)

// Messages
type logMsg string
type progressMsg struct {
	sent  int
	total int
}
type doneMsg struct {
	outcome uploader.Outcome
	err     error
}

// teaSink relays operation events into the running program. Send preserves
// event order.
type teaSink struct {
	p *tea.Program
}

func (s *teaSink) Log(line string) {
	s.p.Send(logMsg(line))
}

func (s *teaSink) Progress(sent, total int) {
	s.p.Send(progressMsg{sent: sent, total: total})
}

// TUI model
type uploadModel struct {
	title      string
	port       string
	baud       int
	cancel     context.CancelFunc
	bar        progress.Model
	sent       int
	total      int
	logs       []string
	maxLogs    int
	outcome    uploader.Outcome
	err        error
	done       bool
	cancelling bool
	width      int
}

func newUploadModel(title string, cfg uploader.Config, cancel context.CancelFunc) uploadModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 50
	return uploadModel{
		title:   title,
		port:    cfg.Port,
		baud:    cfg.Baud,
		cancel:  cancel,
		bar:     bar,
		logs:    make([]string, 0),
		maxLogs: 8,
		width:   80,
	}
}

func (m uploadModel) Init() tea.Cmd {
	return nil
}

func (m uploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Cancellation takes effect between frames; keep the display up
			// until the session winds down.
			m.cancelling = true
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 8
		if w > 60 {
			w = 60
		}
		if w > 10 {
			m.bar.Width = w
		}

	case logMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > m.maxLogs {
			m.logs = m.logs[len(m.logs)-m.maxLogs:]
		}

	case progressMsg:
		m.sent = msg.sent
		m.total = msg.total

	case doneMsg:
		m.outcome = msg.outcome
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m uploadModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	logStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	okStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	var s strings.Builder
	s.WriteString(titleStyle.Render(strings.ToUpper(m.title)))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Port: %s @ %d baud | Press 'q' to cancel", m.port, m.baud)))
	s.WriteString("\n\n")

	var percent float64
	if m.total > 0 {
		percent = float64(m.sent) / float64(m.total)
	}
	s.WriteString(m.bar.ViewAs(percent))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%d / %d bytes", m.sent, m.total)))
	s.WriteString("\n\n")

	for _, line := range m.logs {
		s.WriteString(logStyle.Render(line))
		s.WriteString("\n")
	}

	if m.cancelling && !m.done {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render("Cancelling after the current frame..."))
		s.WriteString("\n")
	}

	if m.done {
		s.WriteString("\n")
		if m.err != nil {
			s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
		} else {
			s.WriteString(okStyle.Render("✓ Upload complete"))
		}
		s.WriteString("\n")
	}

	return s.String()
}

func runTUI(ctx context.Context, op uploader.Operation, cfg uploader.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newUploadModel(op.Name(), cfg, cancel))

	go func() {
		outcome, err := op.Run(ctx, cfg, &teaSink{p: p})
		p.Send(doneMsg{outcome: outcome, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}

	m := final.(uploadModel)
	if m.err != nil {
		return m.err
	}
	fmt.Printf("Finished: %d bytes in %v (bootloader v%d)\n",
		m.outcome.BytesSent, m.outcome.Elapsed.Round(time.Millisecond), m.outcome.BootloaderVersion)
	return nil
}
