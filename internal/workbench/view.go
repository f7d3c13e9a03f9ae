package workbench

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the workbench's terminal interface.
func (m model) View() string {
	switch m.screen {
	case screenRoleList:
		return lipgloss.NewStyle().Margin(1, 2).Render(
			m.roleList.View() + "\n" + footerStyle.Render(m.footer),
		)

	case screenRoleMenu:
		return lipgloss.NewStyle().Margin(1, 2).Render(
			titleStyle.Render(m.selectedRole) + "\n" +
				m.menuList.View() + "\n" +
				footerStyle.Render(m.footer) +
				"\nPress Left Arrow to go back",
		)

	case screenSigners:
		var b strings.Builder
		b.WriteString(m.signerList.View() + "\n\n")
		b.WriteString("Invite a new signer:\n")
		b.WriteString(m.inputs[0].View() + "\n")
		b.WriteString("\nPress Enter to invite, Left Arrow to go back\n")
		b.WriteString(footerStyle.Render(m.footer))
		return lipgloss.NewStyle().Margin(1, 2).Render(b.String())

	case screenExpiry:
		var b strings.Builder
		b.WriteString(titleStyle.Render("Expiry policy for "+m.selectedRole) + "\n\n")
		b.WriteString("Expiry period (days):\n" + m.inputs[0].View() + "\n\n")
		b.WriteString("Signing period (days):\n" + m.inputs[1].View() + "\n")
		b.WriteString("\nPress Tab to switch fields, Enter on the last field to save, Left Arrow to go back\n")
		b.WriteString(footerStyle.Render(m.footer))
		return lipgloss.NewStyle().Margin(1, 2).Render(b.String())

	case screenInvites:
		return lipgloss.NewStyle().Margin(1, 2).Render(
			m.inviteList.View() + "\n\n" +
				footerStyle.Render(m.footer) +
				"\nPress Enter to accept the selected invitation, Left Arrow to go back",
		)

	default:
		return "Unknown screen"
	}
}
