// Command aflrt-monitor is a developer-facing companion to a standalone
// run of an aflrt-instrumented target: it connects to the target's
// monitor socket (AFLRT_MONITOR_SOCK) and serves a small HTTP dashboard
// showing live bitmap hit counts. It is entirely optional tooling — the
// canonical fuzzer/runtime protocol from spec.md §6 never depends on it.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/xyproto/aflrt/internal/bitmap"
)

func main() {
	sock := flag.String("socket", "", "path to the target's AFLRT_MONITOR_SOCK")
	addr := flag.String("addr", "127.0.0.1:8067", "address to serve the dashboard on")
	flag.Parse()

	if *sock == "" {
		fmt.Fprintln(os.Stderr, "aflrt-monitor: -socket is required")
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Get("/coverage", func(w http.ResponseWriter, req *http.Request) {
		snap, err := fetchSnapshot(*sock)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		hits := 0
		for _, b := range snap {
			if b != 0 {
				hits++
			}
		}
		fmt.Fprintf(w, "map_size=%d hit_edges=%d density=%.4f%%\n",
			bitmap.MapSize, hits, 100*float64(hits)/float64(bitmap.MapSize))
	})

	fmt.Fprintf(os.Stderr, "aflrt-monitor: serving %s (target socket %s)\n", *addr, *sock)
	if err := http.ListenAndServe(*addr, r); err != nil {
		fmt.Fprintln(os.Stderr, "aflrt-monitor:", err)
		os.Exit(1)
	}
}

func fetchSnapshot(sockPath string) ([bitmap.MapSize]byte, error) {
	var snap [bitmap.MapSize]byte

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return snap, err
	}
	defer conn.Close()

	_, err = readFull(conn, snap[:])
	return snap, err
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
