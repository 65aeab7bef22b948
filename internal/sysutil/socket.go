package sysutil

import (
	"net"
	"os"
)

// ListenUnix removes a stale socket file at path (left behind by an
// unclean prior shutdown) before binding, so a restart after a crash
// does not fail with "address already in use".
func ListenUnix(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}
	return net.Listen("unix", path)
}
