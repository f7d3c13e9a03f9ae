// Package workbench implements the signer workbench (spec.md §4.F): a
// guided delta builder that lets a human signer configure a role's signers
// and expiry, and accept pending invitations, driven by a bubbletea state
// machine so the prompt loop can be scripted in tests without a real tty.
package workbench

import (
	"context"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jku/repository-playground/internal/repo"
	"github.com/jku/repository-playground/internal/signerverifier"
)

type screen int

const (
	screenRoleList screen = iota // initial screen
	screenRoleMenu
	screenSigners
	screenExpiry
	screenInvites
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

const acceptInvitesTitle = "Accept invitations"

type model struct {
	ctx      context.Context
	repo     *repo.Repository
	backend  signerverifier.SignerBackend
	userName string

	screen       screen
	roleList     list.Model
	menuList     list.Model
	signerList   list.Model
	inviteList   list.Model
	inputs       []textinput.Model
	focusIndex   int
	cursorMode   cursor.Mode
	selectedRole string
	footer       string
}

// initialModel returns the workbench's initial state: a list of every role
// the workbench can edit (root, top-level targets, and every delegated
// targets/<name> role) plus an entry to accept invitations addressed to
// userName.
func initialModel(ctx context.Context, r *repo.Repository, backend signerverifier.SignerBackend, userName string) model {
	m := model{
		ctx:        ctx,
		repo:       r,
		backend:    backend,
		userName:   userName,
		screen:     screenRoleList,
		cursorMode: cursor.CursorBlink,
	}

	roleItems := make([]list.Item, 0, len(listEditableRoles(r.RoleSet()))+1)
	roleItems = append(roleItems, item{title: acceptInvitesTitle, desc: "Review invitations waiting on " + userName})
	for _, name := range listEditableRoles(r.RoleSet()) {
		roleItems = append(roleItems, item{title: name, desc: "Configure signers and expiry"})
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedItemStyle
	delegate.Styles.SelectedDesc = selectedItemStyle
	delegate.Styles.NormalTitle = itemStyle
	delegate.Styles.NormalDesc = itemStyle

	m.roleList = list.New(roleItems, delegate, 0, 0)
	m.roleList.Title = "Signing Event"
	m.roleList.SetShowStatusBar(false)
	m.roleList.SetFilteringEnabled(false)
	m.roleList.Styles.Title = titleStyle
	m.roleList.SetShowHelp(false)

	menuItems := []list.Item{
		item{title: "Configure signers", desc: "Add a signer, view the current key set"},
		item{title: "Configure expiry", desc: "Edit the expiry and signing periods"},
		item{title: "Continue", desc: "Save the role as-is and return to the role list"},
	}
	m.menuList = list.New(menuItems, delegate, 0, 0)
	m.menuList.Title = "Role Menu"
	m.menuList.SetShowStatusBar(false)
	m.menuList.SetFilteringEnabled(false)
	m.menuList.Styles.Title = titleStyle
	m.menuList.SetShowHelp(false)

	m.signerList = list.New([]list.Item{}, delegate, 0, 0)
	m.signerList.Title = "Signers"
	m.signerList.SetShowStatusBar(false)
	m.signerList.SetFilteringEnabled(false)
	m.signerList.Styles.Title = titleStyle
	m.signerList.SetShowHelp(false)

	m.inviteList = list.New([]list.Item{}, delegate, 0, 0)
	m.inviteList.Title = "Pending Invitations"
	m.inviteList.SetShowStatusBar(false)
	m.inviteList.SetFilteringEnabled(false)
	m.inviteList.Styles.Title = titleStyle
	m.inviteList.SetShowHelp(false)

	m.inputs = make([]textinput.Model, 2)
	for i := range m.inputs {
		t := textinput.New()
		t.Cursor.Style = cursorStyle
		t.CharLimit = 64
		m.inputs[i] = t
	}

	return m
}

// Init starts the blinking cursor for the active text input.
func (m model) Init() tea.Cmd {
	return textinput.Blink
}
