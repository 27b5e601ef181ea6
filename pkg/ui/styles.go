package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	stepStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	stepActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	stepDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("118"))
	providerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	systemStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("246"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	choiceStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("#AFAFAF"))
	cursorStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("118"))
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	urlStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Underline(true)

	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	submitStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))

	modalStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)
