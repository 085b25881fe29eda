package zork

import (
	"net"
	"time"

	"github.com/zorktun/zorktun/internal/rtc"
)

// Config carries zorktun's tunable knobs explicitly through constructors,
// replacing the teacher's proxy.Config/dialer.Config shape: ports,
// timeouts, the STUN server list, and the backpressure water marks spec.md
// §5 calls out as equal by design (ambiguity noted in DESIGN.md).
type Config struct {
	// STUNServers is the fixed ICE server list every peer connection is
	// configured with.
	STUNServers []string

	// HeartbeatInterval is how often a getter sends the heartbeat literal.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how long a giver waits for a heartbeat message
	// before decrementing the active-getter count.
	HeartbeatTimeout time.Duration

	// BufferHighWaterMark is the data-channel bufferedAmount threshold (in
	// bytes) above which the giver pauses the forwarding socket.
	BufferHighWaterMark uint64
	// DrainInterval is how often the drain timer re-checks bufferedAmount
	// once a channel has crossed BufferHighWaterMark.
	DrainInterval time.Duration

	// SOCKSPort is the configured local SOCKS5 port; only the first getter
	// in the process binds it (see internal/registry.ClaimSOCKSServer).
	SOCKSPort int

	// DialTimeout bounds the giver's outbound forwarding-socket connect.
	DialTimeout time.Duration
	// KeepAlive is applied to the Zork control listener, the getter's
	// local SOCKS5 listener, and the giver's forwarding sockets.
	KeepAlive net.KeepAliveConfig

	// Verbose is set from the --verbose flag. No code path reads it:
	// session logging is unconditional.
	Verbose bool
}

// DefaultConfig returns zorktun's defaults, with socksPort as the
// configured SOCKS_PORT (spec.md §6 default: 9999).
func DefaultConfig(socksPort int) Config {
	return Config{
		STUNServers:         rtc.STUNServers,
		HeartbeatInterval:   5 * time.Second,
		HeartbeatTimeout:    15 * time.Second,
		BufferHighWaterMark: 500_000,
		DrainInterval:       50 * time.Millisecond,
		SOCKSPort:           socksPort,
		DialTimeout:         10 * time.Second,
	}
}
