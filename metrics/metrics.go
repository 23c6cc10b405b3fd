// Package metrics defines prometheus metric types for the netlink session
// layer and provides a convenience server to export them.
//
// When defining new operations or metrics, these are helpful values to track:
//   - things coming into or out of the system: frames, requests, resolutions.
//   - the success or error status of any of the above.
//   - the distribution of receive latency.
package metrics

import (
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReceiveTimeHistogram tracks the latency of the receive syscall.  It does
	// NOT include the time to decode the received frames.
	ReceiveTimeHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "netlink_receive_time_histogram",
			Help: "netlink receive syscall latency distribution",
			Buckets: []float64{
				0.001, 0.00125, 0.0016, 0.002, 0.0025, 0.0032, 0.004, 0.005, 0.0063, 0.0079,
				0.01, 0.0125, 0.016, 0.02, 0.025, 0.032, 0.04, 0.05, 0.063, 0.079,
				0.1, 0.125, 0.16, 0.2,
			},
		})

	// FrameCount counts message frames through the session layer.
	//
	// Provides metrics:
	//   netlink_frame_total
	// Example usage:
	//   metrics.FrameCount.With(prometheus.Labels{"direction": "rx"}).Inc()
	FrameCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netlink_frame_total",
			Help: "The total number of netlink frames sent and received.",
		}, []string{"direction"})

	// ErrorCount measures the number of errors.
	//
	// Provides metrics:
	//   netlink_error_total
	// Example usage:
	//   metrics.ErrorCount.With(prometheus.Labels{"type": "bad seq"}).Inc()
	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netlink_error_total",
			Help: "The total number of netlink session errors encountered.",
		}, []string{"type"})
)

// SetupPrometheus starts an HTTP server exporting the registered metrics on
// /metrics.  Port 0 picks a free port; the chosen address is in the returned
// server's Addr.
func SetupPrometheus(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Handler: mux}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		log.Println("Could not start metrics server:", err)
		return nil
	}
	server.Addr = listener.Addr().String()
	go func() {
		if err := server.Serve(listener); err != http.ErrServerClosed {
			log.Println("Metrics server exited:", err)
		}
	}()
	return server
}
