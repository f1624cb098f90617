package syncer

import "time"

// Side identifies which side of a mapped pair supplies the data for an
// update.
type Side int

const (
	SideNone Side = iota
	SideRemote
	SideLocal
)

func (s Side) String() string {
	switch s {
	case SideRemote:
		return "remote"
	case SideLocal:
		return "local"
	default:
		return "none"
	}
}

// Decision is the outcome of examining a matched pair. Winner is the side
// whose data must be written to the other; SideNone means the pair is
// already in step.
type Decision struct {
	Conflict bool
	Winner   Side
}

// Decide compares the three timestamps available for a matched pair and
// determines what, if anything, must be written. A conflict exists only
// when both sides changed since the last successful sync; it is resolved
// last-write-wins on the raw timestamps. Equal timestamps resolve to
// remote, so repeated runs over the same pair make the same choice.
//
// Wall-clock comparison is a deliberately weak signal: clock skew or coarse
// timestamp resolution between the two systems can misattribute the winner.
func Decide(lastSyncedAt, remoteUpdated, localUpdated time.Time) Decision {
	remoteChanged := remoteUpdated.After(lastSyncedAt)
	localChanged := localUpdated.After(lastSyncedAt)

	switch {
	case remoteChanged && localChanged:
		if localUpdated.After(remoteUpdated) {
			return Decision{Conflict: true, Winner: SideLocal}
		}
		return Decision{Conflict: true, Winner: SideRemote}
	case remoteChanged:
		return Decision{Winner: SideRemote}
	case localChanged:
		return Decision{Winner: SideLocal}
	default:
		return Decision{Winner: SideNone}
	}
}
