package events

import (
	"context"
	"fmt"
	"net"
)

// Prober reports whether the network link is usable.
type Prober interface {
	// Probe returns the link state and the interface it was judged on.
	Probe(ctx context.Context) (up bool, iface string, err error)
}

// InterfaceProber checks a network interface for an up state with at least
// one non-loopback unicast address.
type InterfaceProber struct {
	// Name is the interface to check; empty checks every interface and
	// reports the first usable one.
	Name string
}

// Probe implements Prober.
func (p InterfaceProber) Probe(ctx context.Context) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, p.Name, err
	}

	if p.Name != "" {
		ifi, err := net.InterfaceByName(p.Name)
		if err != nil {
			return false, p.Name, fmt.Errorf("looking up interface %s: %w", p.Name, err)
		}
		return usable(ifi), p.Name, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return false, "", fmt.Errorf("listing interfaces: %w", err)
	}
	for i := range ifaces {
		if usable(&ifaces[i]) {
			return true, ifaces[i].Name, nil
		}
	}
	return false, "", nil
}

func usable(ifi *net.Interface) bool {
	if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
		return false
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return false
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && ipn.IP.IsGlobalUnicast() {
			return true
		}
	}
	return false
}
