package auth

import "github.com/lalith-99/recshare/internal/apperr"

// Owned is anything with a single owning user.
type Owned interface {
	OwnerID() int64
}

// Authorize is the one ownership predicate for owner-only mutations:
// the actor may change the resource only if they own it.
//
// Why one function instead of comparing ids in each handler?
//   - Recommendations and comments both need it; a copy per handler is
//     one copy too many to forget the actorID <= 0 check in.
//   - The 403 and its message stay identical everywhere.
//
// Existence is checked before this runs, so a missing resource is a 404
// and never leaks through as a 403.
func Authorize(actorID int64, resource Owned) error {
	if actorID <= 0 || resource.OwnerID() != actorID {
		return apperr.Forbidden("you do not own this resource")
	}
	return nil
}
