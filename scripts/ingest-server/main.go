// Command ingest-server is a local target for the http sink. It acknowledges
// every payload with {"id": n} and logs how many payloads arrived each second,
// which makes the waveform visible from the receiving side.
//
//	go run ./scripts/ingest-server -addr :8080
//	waveshaper run --waveform sine --url http://localhost:8080/ingest --ack-path id
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"k8s.io/klog/v2"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	failEvery := flag.Int64("fail-every", 0, "Answer every n-th payload with 503 (0 disables)")
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	var total, interval atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", func(w http.ResponseWriter, r *http.Request) {
		n := total.Add(1)
		interval.Add(1)
		body, _ := io.ReadAll(r.Body)
		klog.V(4).Infof("payload %d: %s", n, body)

		if *failEvery > 0 && n%*failEvery == 0 {
			http.Error(w, "rejected", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id": %d}`, n)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "healthy")
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := interval.Swap(0); n > 0 {
					klog.Infof("%d payloads/s (%d total)", n, total.Load())
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	klog.Infof("Ingest server listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		klog.Fatal(err)
	}
}
