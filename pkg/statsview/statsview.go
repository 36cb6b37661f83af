// Package statsview serves live runtime charts (heap, goroutines, GC) for a
// running emulator.
package statsview

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const DefaultAddress = "localhost:12600"

const path = "/debug/statsview"

// URL returns the page address for a viewer bound to addr.
func URL(addr string) string {
	if addr == "" {
		addr = DefaultAddress
	}
	return fmt.Sprintf("http://%s%s", addr, path)
}

// Launch starts the viewer on addr in a new goroutine and writes its URL to
// output. An empty addr uses DefaultAddress.
func Launch(addr string, output io.Writer) {
	if addr == "" {
		addr = DefaultAddress
	}
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats server available at %s\n", URL(addr))
}
