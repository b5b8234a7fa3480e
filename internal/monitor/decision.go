package monitor

import (
	"time"

	"number-stock-alerts/internal/marketplace"
	"number-stock-alerts/internal/state"
)

// Intervals groups the delays that drive the availability machine.
type Intervals struct {
	Poll     time.Duration
	Cooldown time.Duration
	Recheck  time.Duration
}

// Decision is the outcome of applying one snapshot to the notification
// state: which side effects to run, the state to persist, and how long to
// wait before the next poll.
type Decision struct {
	Notify    bool
	Purchase  bool
	NextDelay time.Duration
	State     state.NotificationState
}

// Decide is the per-poll transition function. It is pure: side effects
// (purchasing, notifying, persisting) are executed by the Controller.
//
// A notification timestamp is considered stale once availability has lapsed
// and more than one cooldown has passed since the notification; a stale
// timestamp is cleared whenever it is observed, so availability that
// reappears after a long gap counts as a first sighting again.
func Decide(st state.NotificationState, snap marketplace.Snapshot, now time.Time, iv Intervals) Decision {
	if !snap.Available {
		st.WasAvailable = false
		if st.LastNotifiedAt != nil && now.Sub(*st.LastNotifiedAt) > iv.Cooldown {
			st.LastNotifiedAt = nil
		}
		return Decision{NextDelay: iv.Poll, State: st}
	}

	if st.LastNotifiedAt != nil && !st.WasAvailable && now.Sub(*st.LastNotifiedAt) > iv.Cooldown {
		st.LastNotifiedAt = nil
	}

	if st.LastNotifiedAt == nil {
		// first sighting: notify immediately, then pause a full cooldown so
		// a window that stays open does not flood the recipient
		notified := now
		st.LastNotifiedAt = &notified
		st.WasAvailable = true
		return Decision{Notify: true, Purchase: true, NextDelay: iv.Cooldown, State: st}
	}

	if st.WasAvailable && now.Sub(*st.LastNotifiedAt) >= iv.Cooldown {
		// availability persisted across a full cooldown: notify again and
		// switch to the shorter recheck cadence to catch the window closing
		notified := now
		st.LastNotifiedAt = &notified
		st.WasAvailable = true
		return Decision{Notify: true, Purchase: true, NextDelay: iv.Recheck, State: st}
	}

	st.WasAvailable = true
	return Decision{NextDelay: iv.Poll, State: st}
}
