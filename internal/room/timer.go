package room

import (
	"context"
	"time"
)

// runTurnTimer watches the optional per-turn countdown. The check runs
// on the actor goroutine, so it can never race a move: whichever lands
// first wins and the other sees the new position.
func (r *Room) runTurnTimer() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = r.do(context.Background(), func() {
				now := time.Now()
				if !r.state.TurnExpired(now) {
					return
				}
				if err := r.state.ExpireTurn(now); err != nil {
					return
				}
				r.commit("TURN_EXPIRED", now)
			})
		case <-r.quit:
			return
		}
	}
}
