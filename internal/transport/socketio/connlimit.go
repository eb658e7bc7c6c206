package socketio

import (
	"net"
	"strings"
	"sync"
)

// ConnectionLimiter caps concurrent remote controllers. Loopback clients
// (the local TUI bridge, kiosk browser) are never counted. When a new remote
// client exceeds the cap, the oldest remote client is evicted.
// A cap of zero or less disables the limit.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	// remote client IDs, oldest first
	external []string
	// clientID -> normalised remote IP
	connections map[string]string
}

// NewConnectionLimiter creates a limiter for up to maxExternal remote clients.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal: maxExternal,
		connections: make(map[string]string),
	}
}

// TryAdd registers a connection from address and returns the ID of the
// client it displaced, if any. Every connection is allowed.
func (cl *ConnectionLimiter) TryAdd(clientID, address string) (allowed bool, evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.connections[clientID]; exists {
		return true, ""
	}

	ip := remoteIP(address)
	cl.connections[clientID] = ip
	if isLocalIP(ip) {
		return true, ""
	}

	cl.external = append(cl.external, clientID)
	if cl.maxExternal > 0 && len(cl.external) > cl.maxExternal {
		evictedID = cl.external[0]
		cl.external = cl.external[1:]
		delete(cl.connections, evictedID)
		return true, evictedID
	}
	return true, ""
}

// Remove forgets a disconnected client.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ip, exists := cl.connections[clientID]
	if !exists {
		return
	}
	delete(cl.connections, clientID)

	if isLocalIP(ip) {
		return
	}
	for i, id := range cl.external {
		if id == clientID {
			cl.external = append(cl.external[:i], cl.external[i+1:]...)
			break
		}
	}
}

// Count returns the number of tracked clients and how many are remote.
func (cl *ConnectionLimiter) Count() (total, external int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.connections), len(cl.external)
}

// remoteIP strips an optional port and IPv4-in-IPv6 prefix from a
// handshake address.
func remoteIP(address string) string {
	address = strings.TrimSpace(address)
	if host, _, err := net.SplitHostPort(address); err == nil {
		address = host
	}
	address = strings.TrimPrefix(address, "::ffff:")
	return address
}

// isLocalIP reports whether ip is a loopback address.
func isLocalIP(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
