// Toastersim runs the silicon toaster firmware loop against a simulated
// power stage and serves its byte protocol over WebSocket, so the host
// tooling can be exercised without a board on the bench.
package main

import (
	"flag"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

var (
	listenAddr = flag.String("listen", "localhost:8765", "HTTP listen address")
	wsPath     = flag.String("path", "/toaster", "WebSocket path")
)

var upgrader = websocket.Upgrader{
	// The simulator is a bench tool, any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	flag.Parse()
	defer glog.Flush()

	sim := newSimulator()
	go sim.run()

	http.HandleFunc(*wsPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			glog.Errorf("upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		glog.Infof("client connected: %s", r.RemoteAddr)
		sim.serve(conn)
		glog.Infof("client disconnected: %s", r.RemoteAddr)
	})

	glog.Infof("simulated board listening on ws://%s%s", *listenAddr, *wsPath)
	if err := http.ListenAndServe(*listenAddr, nil); err != nil {
		glog.Exitf("listen failed: %v", err)
	}
}
