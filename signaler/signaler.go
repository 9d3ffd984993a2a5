// Package signaler handles OS signals for a clean shutdown
package signaler

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitForInterrupt returns a channel that receives the first interrupt or
// termination signal sent to the process
func WaitForInterrupt() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}
