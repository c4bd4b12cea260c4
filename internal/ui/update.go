package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update はメッセージを受けてModelを更新する
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width
		return m, nil

	case tickMsg:
		m.currentTime = time.Time(msg)
		m.refreshLogs()
		return m, timeTickCmd()

	case surfaceChangeMsg:
		m.refreshLogs()
		return m, waitForChange(m.surface)

	case initDoneMsg:
		m.status = m.ctrl.State().String()
		if msg.err != nil {
			m.status = "câmera indisponível"
		}
		return m, nil

	case switchDoneMsg:
		m.status = m.ctrl.State().String()
		if msg.err != nil {
			m.status = "câmera indisponível"
		}
		return m, nil

	case refreshDoneMsg:
		m.status = fmt.Sprintf("%d câmera(s)", msg.count)
		return m, nil

	case submitDoneMsg:
		m.submitting = false
		m.status = m.ctrl.State().String()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// 警告が出ている間は閉じる操作だけを受け付ける
	if m.surface.Snapshot().Alert != "" {
		if key == "enter" || key == "esc" {
			m.surface.DismissAlert()
		}
		return m, nil
	}

	switch key {
	case "ctrl+t":
		m.status = "iniciando câmera..."
		return m, m.switchCmd(m.surface.SelectedDevice())

	case "ctrl+r":
		m.status = "procurando câmeras..."
		return m, m.refreshCmd()

	case "enter":
		m.submitting = true
		m.status = "enviando..."
		return m, m.submitCmd()

	case "tab", "shift+tab":
		cmd := m.cycleFocus(key == "shift+tab")
		return m, cmd

	case "up", "down":
		delta := 1
		if key == "up" {
			delta = -1
		}
		switch m.focus {
		case focusDevices:
			m.surface.MoveDevice(delta)
		case focusClasses:
			m.surface.MoveClass(delta)
		}
		return m, nil

	case "q":
		if m.focus != focusName {
			return m, tea.Quit
		}
	}

	if m.focus == focusName {
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		m.surface.SetName(m.nameInput.Value())
		return m, cmd
	}
	return m, nil
}

func (m *Model) cycleFocus(reverse bool) tea.Cmd {
	order := m.focusOrder()
	idx := 0
	for i, f := range order {
		if f == m.focus {
			idx = i
			break
		}
	}
	if reverse {
		idx = wrap(idx-1, len(order))
	} else {
		idx = wrap(idx+1, len(order))
	}
	m.focus = order[idx]

	if m.focus == focusName {
		return m.nameInput.Focus()
	}
	m.nameInput.Blur()
	return nil
}
