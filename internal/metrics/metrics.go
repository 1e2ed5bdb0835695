package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/traysonr/rover-control-core/internal/logging"
)

// Prometheus counters and gauges.
var (
	BusPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_publish_total",
		Help: "Total values published per bus topic.",
	}, []string{"topic"})
	BusDropTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_drop_total",
		Help: "Total values dropped per bus topic due to a full subscriber queue.",
	}, []string{"topic"})

	UartFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uart_frames_sent_total",
		Help: "Total DRIVE_CMD frames written to the motion MCU serial link.",
	})
	UartFramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uart_frames_received_total",
		Help: "Total TELEMETRY frames decoded from the motion MCU serial link.",
	})

	ParserVersionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parser_version_errors_total",
		Help: "Total frames rejected for an unrecognized protocol version.",
	})
	ParserCRCErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parser_crc_errors_total",
		Help: "Total frames rejected for a CRC mismatch.",
	})
	ParserDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parser_decode_errors_total",
		Help: "Total frames that decoded but had an unexpected payload length for their msg_type.",
	})

	WatchdogStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchdog_stale_total",
		Help: "Total stale-command detections (UART sender ticks or PWM listener polls) where a safe command or stop was substituted.",
	})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrSerialOpen     = "serial_open"
	ErrSerialRead     = "serial_read"
	ErrSerialWrite    = "serial_write"
	ErrSerialOverflow = "serial_tx_overflow"
	ErrGPIOClaim      = "gpio_claim"
	ErrGPIOWrite      = "gpio_write"
)

// StartHTTP serves Prometheus metrics and a readiness probe at the given addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap periodic logging without scraping
// Prometheus in-process.
var (
	localUartTx     uint64
	localUartRx     uint64
	localVersionErr uint64
	localCRCErr     uint64
	localDecodeErr  uint64
	localWatchdog   uint64
	localErrors     uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	UartFramesSent     uint64
	UartFramesReceived uint64
	VersionErrors      uint64
	CRCErrors          uint64
	DecodeErrors       uint64
	WatchdogStale      uint64
	Errors             uint64
}

func Snap() Snapshot {
	return Snapshot{
		UartFramesSent:     atomic.LoadUint64(&localUartTx),
		UartFramesReceived: atomic.LoadUint64(&localUartRx),
		VersionErrors:      atomic.LoadUint64(&localVersionErr),
		CRCErrors:          atomic.LoadUint64(&localCRCErr),
		DecodeErrors:       atomic.LoadUint64(&localDecodeErr),
		WatchdogStale:      atomic.LoadUint64(&localWatchdog),
		Errors:             atomic.LoadUint64(&localErrors),
	}
}

// IncBusPublish increments the publish counter for topic.
func IncBusPublish(topic string) { BusPublishTotal.WithLabelValues(topic).Inc() }

// AddBusDrop adds n drops to topic's drop counter.
func AddBusDrop(topic string, n int) { BusDropTotal.WithLabelValues(topic).Add(float64(n)) }

func IncUartTx() {
	UartFramesSent.Inc()
	atomic.AddUint64(&localUartTx, 1)
}

func IncUartRx() {
	UartFramesReceived.Inc()
	atomic.AddUint64(&localUartRx, 1)
}

func IncVersionError() {
	ParserVersionErrors.Inc()
	atomic.AddUint64(&localVersionErr, 1)
}

func IncCRCError() {
	ParserCRCErrors.Inc()
	atomic.AddUint64(&localCRCErr, 1)
}

func IncDecodeError() {
	ParserDecodeErrors.Inc()
	atomic.AddUint64(&localDecodeErr, 1)
}

func IncWatchdogStale() {
	WatchdogStaleTotal.Inc()
	atomic.AddUint64(&localWatchdog, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error does not pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrSerialOpen, ErrSerialRead, ErrSerialWrite, ErrSerialOverflow, ErrGPIOClaim, ErrGPIOWrite} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
