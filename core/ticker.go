package core

import (
	"time"
	"weak"
)

// produceTicks waits out the start grace, sends the first tick, and then
// sends one every period. It only holds the mailbox weakly and exits as soon
// as the mailbox is gone or the actor has stopped.
func produceTicks(box weak.Pointer[mailbox], period, grace time.Duration, done, quit <-chan struct{}) {
	if grace > 0 {
		timer := time.NewTimer(grace)
		select {
		case <-timer.C:
		case <-done:
			timer.Stop()
			return
		case <-quit:
			timer.Stop()
			return
		}
	}

	if !sendTick(box, done, quit) {
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-done:
			return
		case <-quit:
			return
		}

		if !sendTick(box, done, quit) {
			return
		}
	}
}

// sendTick upgrades the weak mailbox pointer for one send. The strong
// reference is dropped as soon as the send completes.
func sendTick(box weak.Pointer[mailbox], done, quit <-chan struct{}) bool {
	mb := box.Value()
	if mb == nil {
		return false
	}

	select {
	case mb.ch <- tickCmd{}:
		return true
	case <-done:
		return false
	case <-quit:
		return false
	}
}
