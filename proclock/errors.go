package proclock

import (
	"github.com/CertX-AI/NirmatAI-WebApp/proclock/store"
)

var (
	// ErrAlreadyLocked means another processing session holds the lock.
	// Expected and non-fatal: the caller decides whether to retry later.
	ErrAlreadyLocked = store.ErrAlreadyLocked

	// ErrPermissionDenied means a release was attempted without the matching
	// owner and token. The lock record is left intact.
	ErrPermissionDenied = store.ErrPermissionDenied
)
