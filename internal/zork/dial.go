package zork

import (
	"context"

	"github.com/zorktun/zorktun/internal/socks"
)

// Dialer opens the giver's outbound forwarding socket to host:port,
// bounded by ctx. internal/forward.Dial, adapted to this signature by
// cmd/zorktun, is the production implementation; tests supply their own.
type Dialer func(ctx context.Context, host string, port uint16) (socks.ForwardingSocket, error)
