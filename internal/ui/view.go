package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"presenca/internal/submission"
)

// スタイル
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	sectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62"))

	focusedTitleStyle = sectionTitleStyle.Copy().
				Underline(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("110"))

	resultStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("35")).
			Padding(0, 1)

	resultErrorStyle = resultStyle.Copy().
				BorderForeground(lipgloss.Color("160"))

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 3).
			Bold(true)

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// View は画面を描画する
func (m Model) View() string {
	snap := m.surface.Snapshot()

	title := "Registro de Presença"
	if m.mode == submission.Enrollment {
		title = "Cadastro de Rosto"
	}
	header := headerStyle.Width(m.width).Render(lipgloss.JoinHorizontal(
		lipgloss.Center,
		title,
		lipgloss.NewStyle().
			Width(max(m.width-len(title)-4, 0)).
			Align(lipgloss.Right).
			Render(m.currentTime.Format("02/01/2006 15:04:05")),
	))

	if snap.Alert != "" {
		alert := alertStyle.Render(snap.Alert + "\n\n[enter] OK")
		return fmt.Sprintf("%s\n\n%s", header, lipgloss.Place(
			max(m.width, lipgloss.Width(alert)),
			max(m.height-2, lipgloss.Height(alert)),
			lipgloss.Center, lipgloss.Center,
			alert,
		))
	}

	var sections []string
	sections = append(sections, m.renderList("Câmera", focusDevices, deviceTexts(snap), snap.DeviceIdx))
	if m.mode == submission.Enrollment {
		sections = append(sections, m.renderList("Turma", focusClasses, classTexts(snap), snap.ClassIdx))
		sections = append(sections, m.renderTitle("Nome", focusName)+"\n"+m.nameInput.View())
	}

	result := snap.Result
	if result == "" {
		result = " "
	}
	style := resultStyle
	if snap.Failed {
		style = resultErrorStyle
	}
	sections = append(sections, style.Width(max(m.width-4, 20)).Render(result))

	if m.previewURL != "" {
		sections = append(sections, logStyle.Render("Pré-visualização: "+m.previewURL))
	}

	sections = append(sections, logStyle.Render(m.logViewport.View()))

	keys := "ctrl+t: iniciar câmera | ctrl+r: atualizar | enter: capturar e enviar | tab: campo | ctrl+c: sair"
	statusBar := statusBarStyle.Width(m.width).Render(fmt.Sprintf("Status: %s | %s", m.status, keys))

	return fmt.Sprintf("%s\n%s\n%s", header, strings.Join(sections, "\n\n"), statusBar)
}

func (m Model) renderTitle(title string, area focusArea) string {
	if m.focus == area {
		return focusedTitleStyle.Render(title)
	}
	return sectionTitleStyle.Render(title)
}

func (m Model) renderList(title string, area focusArea, items []string, selected int) string {
	var b strings.Builder
	b.WriteString(m.renderTitle(title, area))
	if len(items) == 0 {
		b.WriteString("\n  (nenhuma)")
		return b.String()
	}
	for i, item := range items {
		b.WriteString("\n")
		if i == selected {
			b.WriteString(selectedStyle.Render("> " + item))
		} else {
			b.WriteString("  " + item)
		}
	}
	return b.String()
}

func deviceTexts(s Snapshot) []string {
	out := make([]string, len(s.Devices))
	for i, d := range s.Devices {
		out[i] = d.Text
	}
	return out
}

func classTexts(s Snapshot) []string {
	out := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		out[i] = c.Text
	}
	return out
}
