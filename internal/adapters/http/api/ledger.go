package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/internal/domain/types"
)

// LedgerDependencies defines the interface for reading one ledger entry.
type LedgerDependencies interface {
	Entry(ctx context.Context, repo, username string) (types.LedgerEntry, error)
}

// LedgerHandler handles ledger entry requests.
type LedgerHandler struct {
	deps LedgerDependencies
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(deps LedgerDependencies) *LedgerHandler {
	return &LedgerHandler{deps: deps}
}

// HandleGetEntry handles GET /ledger/{owner}/{repo}/{username} requests.
func (h *LedgerHandler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ledger_entry"
	entry, err := h.deps.Entry(r.Context(), repoName(r), r.PathValue("username"))
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, ledger.ErrInvalidIncrement):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}
