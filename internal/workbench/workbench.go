package workbench

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jku/repository-playground/internal/repo"
	"github.com/jku/repository-playground/internal/signerverifier"
)

// Run starts the interactive signer workbench (spec.md §4.F) against the
// repository surface r, mutating its in-memory RoleSet until the user exits.
// The offline signer backend is resolved once, up front (spec.md §9: a
// SignerBackend capability selected by a small registry keyed on URI
// scheme, held for the run rather than re-resolved on every keystroke). The
// caller is responsible for flushing r (and pushing the event branch) once
// Run returns -- the workbench itself never commits, mirroring the
// repository surface's "it does not talk to git; the caller commits"
// contract (spec.md §4.B) one level up.
func Run(ctx context.Context, r *repo.Repository, cfg signerverifier.BackendConfig, userName string) error {
	backend, err := signerverifier.ResolveOffline(ctx, cfg)
	if err != nil {
		return err
	}
	m := initialModel(ctx, r, backend, userName)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
