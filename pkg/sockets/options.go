package sockets

import "net/http"

func WithPingIntervalSec(p int) func(*Hub) {
	return func(h *Hub) {
		h.pingIntervalSecs = p
	}
}

func WithPingMsg(msg []byte) func(*Hub) {
	return func(h *Hub) {
		h.pingMsg = msg
	}
}

// WithCheckOrigin overrides the same-origin check of the upgrader.
func WithCheckOrigin(f func(r *http.Request) bool) func(*Hub) {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = f
	}
}

func OnMessage(f func([]byte, Connection)) func(*Hub) {
	return func(h *Hub) {
		h.onMessage = f
	}
}

func OnError(f func(error)) func(*Hub) {
	return func(h *Hub) {
		h.onError = f
	}
}

func OnConnected(f func(Connection)) func(*Hub) {
	return func(h *Hub) {
		h.onConnected = f
	}
}
