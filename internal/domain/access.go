package domain

import "time"

// EntryCheck bundles what VerifyEntry needs to decide on a join attempt.
type EntryCheck struct {
	ConnectionID string
	Password     string
	Kick         *KickRecord
	Now          time.Time
	KickTimeout  time.Duration
}

// VerifyEntry decides whether a connection may enter the room. Checks run in a
// fixed order: ban, lock, then temporary kick. A nil error means allow.
func (r *Room) VerifyEntry(check EntryCheck, hasher PasswordHasher) error {
	if r.IsBanned(check.ConnectionID) {
		return ErrBanned
	}

	if r.Locked {
		if check.Password == "" {
			return ErrLockedPasswordRequired
		}
		if !hasher.Verify(r.PasswordHash, check.Password) {
			return ErrLockedIncorrectPassword
		}
	}

	if check.Kick.ActiveFor(r.ID, check.Now, check.KickTimeout) {
		return ErrTemporarilyKicked
	}

	return nil
}

// AuthorizeModeration validates a kick or ban request and returns the target
// member. The owner may target themselves; the room keeps its owner id.
func (r *Room) AuthorizeModeration(requester, target string) (Member, error) {
	if !r.IsOwner(requester) {
		return Member{}, ErrForbidden
	}

	m, ok := r.FindMember(target)
	if !ok {
		return Member{}, ErrNotAMember
	}
	return m, nil
}
