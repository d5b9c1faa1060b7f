package controller

import (
	"sync"

	"github.com/alexwynter/wavelength/internal/live"
)

const subscriberBuffer = 16

// signalHub fans freshly appended signals out to live per-recipient
// subscribers. Delivery is best-effort: a subscriber that falls behind
// has messages dropped and re-syncs from the persisted feed.
type signalHub struct {
	mu   sync.RWMutex
	subs map[string]map[string]map[chan live.SignalMessage]struct{}
}

func newSignalHub() *signalHub {
	return &signalHub{subs: make(map[string]map[string]map[chan live.SignalMessage]struct{})}
}

func (h *signalHub) subscribe(sessionID, recipientID string) (chan live.SignalMessage, func()) {
	ch := make(chan live.SignalMessage, subscriberBuffer)
	h.mu.Lock()
	byRecipient, ok := h.subs[sessionID]
	if !ok {
		byRecipient = make(map[string]map[chan live.SignalMessage]struct{})
		h.subs[sessionID] = byRecipient
	}
	set, ok := byRecipient[recipientID]
	if !ok {
		set = make(map[chan live.SignalMessage]struct{})
		byRecipient[recipientID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[sessionID][recipientID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs[sessionID], recipientID)
			}
		}
		if len(h.subs[sessionID]) == 0 {
			delete(h.subs, sessionID)
		}
	}
	return ch, cancel
}

func (h *signalHub) publish(msg live.SignalMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[msg.SessionID][msg.To] {
		select {
		case ch <- msg:
		default:
		}
	}
}
