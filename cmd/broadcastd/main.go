// Command broadcastd runs one synchronized audio broadcast channel, dialing
// out to each configured receiver and serving prometheus metrics.
package main

import (
	"github.com/soundwaveio/syncaudio/broadcastd"
)

func main() {
	broadcastd.Main()
}
