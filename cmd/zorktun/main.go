// Command zorktun runs the Zork control listener: a P2P proxy broker that
// multiplexes SOCKS5 client traffic over WebRTC data channels between a
// getter (local SOCKS5 server) and a giver (outbound forwarding socket).
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/zorktun/zorktun/internal/conn"
	"github.com/zorktun/zorktun/internal/forward"
	"github.com/zorktun/zorktun/internal/registry"
	"github.com/zorktun/zorktun/internal/socks"
	"github.com/zorktun/zorktun/internal/zork"
)

const (
	defaultZorkPort  = 9000
	defaultSOCKSPort = 9999
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		verbose     = pflag.Bool("verbose", false, "Accepted but has no effect; per-session logging is always on")
		debugListen = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	zorkPort, socksPort, err := parsePositionalPorts(pflag.Args())
	if err != nil {
		pflag.Usage()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := zork.DefaultConfig(socksPort)
	cfg.Verbose = *verbose

	g, ctx := errgroup.WithContext(context.Background())
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: cfg.KeepAlive}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Printf("debug listening on %s", *debugListen)
	}

	reg := registry.New()
	dialCfg := forward.Config{
		DialTimeout: cfg.DialTimeout,
		KeepAlive:   cfg.KeepAlive,
		Resolver:    forward.NewResolver(),
	}
	dial := func(ctx context.Context, host string, port uint16) (socks.ForwardingSocket, error) {
		return forward.Dial(ctx, dialCfg, host, port)
	}

	broker := zork.NewBroker(cfg, reg, dial)

	zorkAddr := fmt.Sprintf("0.0.0.0:%d", zorkPort)
	ln, err := conn.ListenTCP("tcp", zorkAddr, cfg.KeepAlive)
	if err != nil {
		return fmt.Errorf("zork listen: %w", err)
	}
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
		broker.Shutdown()
	})

	g.Go(func() error {
		if err := broker.Serve(ln); err != nil && ctx.Err() != nil {
			return nil
		} else if err != nil {
			return fmt.Errorf("zork serve: %w", err)
		}
		return nil
	})
	log.Printf("zork control listening on %s, default socks port %d", zorkAddr, socksPort)

	err = g.Wait()

	log.Print("shutting down")
	return err
}

// parsePositionalPorts reads the two positional arguments spec.md §6
// names: ZORK_PORT and SOCKS_PORT, both optional, each defaulting
// independently when omitted. Non-numeric arguments are a usage error.
func parsePositionalPorts(args []string) (zorkPort, socksPort int, err error) {
	zorkPort, socksPort = defaultZorkPort, defaultSOCKSPort

	if len(args) > 2 {
		return 0, 0, fmt.Errorf("too many arguments: want [ZORK_PORT [SOCKS_PORT]], got %v", args)
	}
	if len(args) >= 1 {
		zorkPort, err = strconv.Atoi(args[0])
		if err != nil {
			return 0, 0, fmt.Errorf("ZORK_PORT must be numeric: %w", err)
		}
	}
	if len(args) >= 2 {
		socksPort, err = strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("SOCKS_PORT must be numeric: %w", err)
		}
	}
	return zorkPort, socksPort, nil
}
