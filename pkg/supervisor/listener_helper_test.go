package supervisor

import (
	"fmt"
	"net"
	"sync"
)

var (
	fakeListenersMu sync.Mutex
	fakeListeners   = map[int]net.Listener{}
)

// startFakeListener opens a real TCP listener on 127.0.0.1:port so
// health.Probe observes a live service, standing in for an exec'd child
// that the fakeTracker never actually spawns.
func startFakeListener(port int) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return
	}
	fakeListenersMu.Lock()
	fakeListeners[port] = ln
	fakeListenersMu.Unlock()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
}

func stopFakeListener(port int) {
	fakeListenersMu.Lock()
	ln, ok := fakeListeners[port]
	delete(fakeListeners, port)
	fakeListenersMu.Unlock()
	if ok {
		_ = ln.Close()
	}
}
