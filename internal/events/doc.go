// Package events provides event-group synchronisation and network link
// monitoring.
//
// A Group holds flag bits that goroutines wait on without consuming them.
// The Monitor keeps LinkConnected in sync with the network interface and
// broadcasts each transition on the bus as a LinkState command:
//
//	grp := events.NewGroup()
//	mon := events.NewMonitor(reg, events.InterfaceProber{Name: "wlan0"}, grp, "system", 5*time.Second)
//	_ = mon.Start()
//	go mon.Run(ctx)
//
//	if err := grp.WaitConnection(ctx); err != nil {
//	    return err
//	}
package events
