package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/walkai/stride/internal/query"
)

// resultMsg carries one cache update for a subscription.
type resultMsg struct {
	sub *query.Subscription
	res query.Result
}

// fanOutMsg signals that one or more dependent secret detail results changed.
type fanOutMsg struct {
	fan *query.FanOut
}

// waitResult blocks on the next update for a subscription. The Update loop
// re-arms it after consuming each message; a closed subscription yields a nil
// message, which Bubble Tea discards.
func waitResult(sub *query.Subscription) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-sub.Updates()
		if !ok {
			return nil
		}
		return resultMsg{sub: sub, res: res}
	}
}

// waitFanOut blocks until the fan-out has fresh element results. One waiter
// is armed per fan-out and re-armed on receipt.
func waitFanOut(fan *query.FanOut) tea.Cmd {
	return func() tea.Msg {
		<-fan.Ready()
		return fanOutMsg{fan: fan}
	}
}
