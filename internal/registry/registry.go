// Package registry holds zorktun's process-scoped counters and latches.
//
// The source system this daemon is modeled on kept these as bare package
// globals (a connection counter, a getter counter, a "have we bound the
// SOCKS port yet" flag). That coupling makes it impossible to run two
// independent instances in one process, which a test harness wants to do.
// registry.Registry is the promoted replacement: a small struct, backed by
// github.com/patrickmn/go-cache for its concurrency-safe Get/Set surface,
// passed explicitly to every *zork.Session instead of read from a global.
package registry

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
)

const (
	keyNumZorkConnections = "num_zork_connections"
	keyStartedSOCKSServer = "started_socks_server"
)

// Registry is the process-scoped state a running zorktun daemon shares
// across every Zork session: the connection counter, the active-getter
// count, and the local-SOCKS-port latch. It holds no sessions: the live
// sessions are tracked by zork.Broker.
type Registry struct {
	cache *cache.Cache

	connSeq int64 // atomic; source of client_id's "zc<N>" suffix

	mu      sync.Mutex // guards getters' clamp-at-zero logic
	getters int
}

// New constructs an empty Registry.
func New() *Registry {
	r := &Registry{cache: cache.New(cache.NoExpiration, cache.NoExpiration)}
	r.cache.Set(keyNumZorkConnections, int64(0), cache.NoExpiration)
	return r
}

// NextClientID allocates the next "zc<N>" client identifier and bumps
// NumZorkConnections.
func (r *Registry) NextClientID() string {
	n := atomic.AddInt64(&r.connSeq, 1)
	r.cache.IncrementInt64(keyNumZorkConnections, 1)
	return fmt.Sprintf("zc%d", n)
}

// NumZorkConnections returns the number of Zork control connections ever
// accepted by this registry.
func (r *Registry) NumZorkConnections() int64 {
	v, ok := r.cache.Get(keyNumZorkConnections)
	if !ok {
		return 0
	}
	return v.(int64)
}

// IncGetters increments the active-getter count. Called when a giver-side
// heartbeat data channel opens.
func (r *Registry) IncGetters() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getters++
}

// DecGetters decrements the active-getter count, clamping at zero. Called
// on giver-side heartbeat timeout. A clamp firing (decrementing past zero)
// is logged as an error: it indicates a bookkeeping bug upstream.
func (r *Registry) DecGetters() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getters <= 0 {
		log.Printf("registry: num_getters clamp triggered (was %d)", r.getters)
		r.getters = 0
		return
	}
	r.getters--
}

// Getters returns the current active-getter count.
func (r *Registry) Getters() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getters
}

// ClaimSOCKSServer reports whether the caller is the first getter to need a
// local SOCKS5 listener in this process. The first caller gets true (and
// should bind the configured port); every subsequent caller gets false (and
// should bind an ephemeral port). Uses Add rather than Get-then-Set so the
// claim is a single atomic operation: two concurrent callers racing a
// Get-then-Set would both observe the unclaimed state and both try to bind
// the configured port.
func (r *Registry) ClaimSOCKSServer() bool {
	return r.cache.Add(keyStartedSOCKSServer, true, cache.NoExpiration) == nil
}
