package proximity

import "errors"

// Error taxonomy for elimination decisions. Only the not-found errors
// propagate out of engine operations, so callers can tell "cannot decide"
// apart from a definitive false; every other condition folds into a
// fail-closed false or no-alert outcome.
var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrGameNotFound   = errors.New("game not found")

	// ErrInvalidArgument is returned by directory implementations for
	// empty or malformed ids.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Internal rejection reasons, surfaced only through diagnostics.
const (
	reasonMissingID        = "missing id"
	reasonSelfTarget       = "killer and victim are the same player"
	reasonBadStatus        = "player status not eligible"
	reasonMissingLocation  = "missing location"
	reasonStaleLocation    = "stale location"
	reasonSafeZone         = "player inside safe zone"
	reasonOutOfRange       = "outside effective radius"
	reasonBadCoordinate    = "coordinate outside valid ranges"
	reasonDirectoryFailure = "directory lookup failed"
)
