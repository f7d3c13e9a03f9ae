// This file handles TUI input handling, following the Update split every
// bubbletea screen in this codebase's retrieval pack uses (one file for
// model+Init, one for Update, one for View).
package workbench

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Update updates the model based on the message received.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := lipgloss.NewStyle().Margin(1, 2).GetFrameSize()
		m.roleList.SetSize(msg.Width-h, msg.Height-v)
		m.menuList.SetSize(msg.Width-h, msg.Height-v)
		m.signerList.SetSize(msg.Width-h, msg.Height-v)
		m.inviteList.SetSize(msg.Width-h, msg.Height-v)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left":
			m.footer = ""
			switch m.screen {
			case screenRoleMenu, screenInvites:
				m.screen = screenRoleList
			case screenSigners, screenExpiry:
				m.screen = screenRoleMenu
			}
			return m, nil
		case "enter":
			return m.handleEnter()
		case "tab", "shift+tab", "up", "down":
			if m.screen == screenSigners || m.screen == screenExpiry {
				m.cycleFocus(msg.String())
				return m, nil
			}
		}
	}

	switch m.screen {
	case screenRoleList:
		m.roleList, cmd = m.roleList.Update(msg)
	case screenRoleMenu:
		m.menuList, cmd = m.menuList.Update(msg)
	case screenSigners:
		m.inputs[0], cmd = m.inputs[0].Update(msg)
	case screenExpiry:
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
	case screenInvites:
		m.inviteList, cmd = m.inviteList.Update(msg)
	}
	return m, cmd
}

// handleEnter dispatches the Enter key for the active screen. It is kept
// separate from Update's key switch because several branches need to return
// early with an error rendered to the footer rather than falling through to
// the per-screen list/input forwarding below.
func (m model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenRoleList:
		i, ok := m.roleList.SelectedItem().(item)
		if !ok {
			return m, nil
		}
		if i.title == acceptInvitesTitle {
			m.refreshInviteList()
			m.screen = screenInvites
			return m, nil
		}
		m.selectedRole = i.title
		m.screen = screenRoleMenu
		m.menuList.Select(0)
		return m, nil

	case screenRoleMenu:
		i, ok := m.menuList.SelectedItem().(item)
		if !ok {
			return m, nil
		}
		switch i.title {
		case "Configure signers":
			m.refreshSignerList()
			m.inputs[0].Reset()
			m.inputs[0].Placeholder = "owner handle to invite"
			m.inputs[0].Focus()
			m.focusIndex = 0
			m.screen = screenSigners
		case "Configure expiry":
			m.prefillExpiryInputs()
			m.focusIndex = 0
			m.inputs[0].Focus()
			m.inputs[1].Blur()
			m.screen = screenExpiry
		case "Continue":
			if err := continueRole(m.ctx, m.repo, m.backend, m.selectedRole); err != nil {
				m.footer = fmt.Sprintf("error signing %s: %v", m.selectedRole, err)
				return m, nil
			}
			m.footer = fmt.Sprintf("%s signed and staged", m.selectedRole)
			m.screen = screenRoleList
		}
		return m, nil

	case screenSigners:
		owner := m.inputs[0].Value()
		if owner == "" {
			return m, nil
		}
		if err := addSignerInvite(m.repo, m.selectedRole, owner); err != nil {
			m.footer = fmt.Sprintf("error inviting %s: %v", owner, err)
			return m, nil
		}
		m.footer = fmt.Sprintf("invited %s to sign %s", owner, m.selectedRole)
		m.inputs[0].Reset()
		m.refreshSignerList()
		return m, nil

	case screenExpiry:
		if m.focusIndex != len(m.inputs)-1 {
			return m, nil
		}
		expiryDays, err1 := strconv.Atoi(m.inputs[0].Value())
		signingDays, err2 := strconv.Atoi(m.inputs[1].Value())
		if err1 != nil || err2 != nil {
			m.footer = "expiry and signing period must be whole numbers of days"
			return m, nil
		}
		if err := setExpiryPeriods(m.repo, m.selectedRole, expiryDays, signingDays); err != nil {
			m.footer = fmt.Sprintf("error setting expiry: %v", err)
			return m, nil
		}
		m.footer = fmt.Sprintf("%s expiry policy updated", m.selectedRole)
		m.screen = screenRoleMenu
		return m, nil

	case screenInvites:
		i, ok := m.inviteList.SelectedItem().(inviteItem)
		if !ok {
			return m, nil
		}
		if err := acceptInvite(m.ctx, m.repo, m.backend, i.role, m.userName); err != nil {
			m.footer = fmt.Sprintf("error accepting invite for %s: %v", i.role, err)
			return m, nil
		}
		m.footer = fmt.Sprintf("accepted invite for %s, signed", i.role)
		m.refreshInviteList()
		return m, nil
	}
	return m, nil
}

// cycleFocus moves the focused text input within the active screen,
// matching the tab/shift-tab/up/down focus-ring convention used across the
// codebase's other bubbletea screens.
func (m *model) cycleFocus(key string) {
	n := 1
	if m.screen == screenExpiry {
		n = len(m.inputs)
	}
	if key == "up" || key == "shift+tab" {
		m.focusIndex--
		if m.focusIndex < 0 {
			m.focusIndex = n - 1
		}
	} else {
		m.focusIndex++
		if m.focusIndex >= n {
			m.focusIndex = 0
		}
	}
	for i := 0; i < n; i++ {
		if i == m.focusIndex {
			m.inputs[i].Focus()
			m.inputs[i].PromptStyle = focusedStyle
			m.inputs[i].TextStyle = focusedStyle
			continue
		}
		m.inputs[i].Blur()
		m.inputs[i].PromptStyle = blurredStyle
		m.inputs[i].TextStyle = blurredStyle
	}
}

// refreshSignerList rebuilds the signer list for the currently selected role
// from the repository surface's live RoleSet.
func (m *model) refreshSignerList() {
	signers, threshold, err := currentSigners(m.repo.RoleSet(), m.selectedRole)
	if err != nil {
		m.footer = fmt.Sprintf("error loading signers: %v", err)
		return
	}
	items := make([]list.Item, len(signers))
	for i, s := range signers {
		items[i] = s
	}
	m.signerList.SetItems(items)
	m.signerList.Title = fmt.Sprintf("Signers for %s (threshold %d)", m.selectedRole, threshold)
}

// refreshInviteList rebuilds the pending-invites list addressed to userName.
func (m *model) refreshInviteList() {
	invites := pendingInvites(m.repo.RoleSet(), m.userName)
	items := make([]list.Item, len(invites))
	for i, inv := range invites {
		items[i] = inv
	}
	m.inviteList.SetItems(items)
}

// prefillExpiryInputs seeds the expiry-period and signing-period inputs
// with the selected role's current values.
func (m *model) prefillExpiryInputs() {
	role, ok := m.repo.ReadRole(m.selectedRole)
	if !ok {
		return
	}
	common, err := roleCommonOf(role.Payload)
	if err != nil {
		return
	}
	m.inputs[0].SetValue(strconv.Itoa(common.ExpiryPeriodDays()))
	m.inputs[1].SetValue(strconv.Itoa(common.SigningPeriodDays()))
}
