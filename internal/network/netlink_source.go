package network

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"pennysync/internal/logging"
)

// NetlinkSource derives connectivity from kernel udev events on the net
// subsystem. Each carrier/link event triggers a re-read of interface flags;
// the source reports the raw result without any reachability probing.
type NetlinkSource struct {
	logger *slog.Logger
	// iface restricts the check to one interface name; empty considers every
	// non-loopback interface.
	iface string

	mu   sync.Mutex
	conn *netlink.UEventConn
}

// NewNetlinkSource creates a netlink-backed connectivity source.
func NewNetlinkSource(logger *slog.Logger, iface string) *NetlinkSource {
	return &NetlinkSource{
		logger: logging.NewComponentLogger(logger, "netlink-source"),
		iface:  strings.TrimSpace(iface),
	}
}

// Watch implements Source. The initial state comes from interface flags so
// a daemon starting while connected begins online.
func (s *NetlinkSource) Watch(ctx context.Context) (bool, <-chan bool, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return false, nil, err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	events := make(chan bool, 16)
	go s.monitorLoop(ctx, conn, events)

	return s.linkUp(), events, nil
}

func (s *NetlinkSource) monitorLoop(ctx context.Context, conn *netlink.UEventConn, events chan<- bool) {
	defer close(events)

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, s.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			_ = conn.Close()
			return
		case uevent := <-queue:
			s.logger.Debug("net subsystem event",
				logging.String("action", string(uevent.Action)),
				logging.String("kobj", uevent.KObj),
			)
			select {
			case events <- s.linkUp():
			default:
			}
		case err := <-errs:
			s.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
			)
		}
	}
}

// buildMatcher matches all udev events on the net subsystem. Carrier
// changes arrive as "change" actions; interface add/remove as add/remove.
func (s *NetlinkSource) buildMatcher() netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

// linkUp reports whether any considered interface is up and running.
func (s *NetlinkSource) linkUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		s.logger.Warn("list interfaces failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "interface_list_failed"),
		)
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if s.iface != "" && iface.Name != s.iface {
			continue
		}
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagRunning != 0 {
			return true
		}
	}
	return false
}
