package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	libmetrics "parkwise/backend/libs/metrics"
)

// Routes groups handlers.
type Routes struct {
	Entry            http.HandlerFunc
	FindVehicle      http.HandlerFunc
	LatestEntry      http.HandlerFunc
	EntryRecords     http.HandlerFunc
	EntryExitRecords http.HandlerFunc
	Records          http.HandlerFunc
	PaymentCheck     http.HandlerFunc
	Payment          http.HandlerFunc
	Exit             http.HandlerFunc
	PaymentHistory   http.HandlerFunc
	ConfigGet        http.HandlerFunc
	ConfigSave       http.HandlerFunc
	GateFeed         http.HandlerFunc
	Health           http.HandlerFunc
	Metrics          http.Handler
}

// NewRouter registers endpoints. Every route except /metrics is instrumented; the whole
// mux sits behind request ID and access logging middleware.
func NewRouter(routes Routes, m *libmetrics.HTTPMetrics, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, m.Wrap(pattern, h))
	}

	get := map[string]http.HandlerFunc{
		"/parking/car/{plate}":             routes.FindVehicle,
		"/parking/entry/latest/{plate}":    routes.LatestEntry,
		"/parking/entry-records":           routes.EntryRecords,
		"/parking/entry-exit-records":      routes.EntryExitRecords,
		"/parking/records":                 routes.Records,
		"/parking/payment-history/{plate}": routes.PaymentHistory,
		"/ws/gate":                         routes.GateFeed,
		"/health":                          routes.Health,
	}
	for pattern, h := range get {
		if h != nil {
			handle(pattern, method(http.MethodGet, h))
		}
	}

	post := map[string]http.HandlerFunc{
		"/parking/entry":         routes.Entry,
		"/parking/payment/check": routes.PaymentCheck,
		"/parking/payment":       routes.Payment,
		"/parking/exit":          routes.Exit,
	}
	for pattern, h := range post {
		if h != nil {
			handle(pattern, method(http.MethodPost, h))
		}
	}

	if routes.ConfigGet != nil && routes.ConfigSave != nil {
		handle("/config/billing", methods(map[string]http.HandlerFunc{
			http.MethodGet:  routes.ConfigGet,
			http.MethodPost: routes.ConfigSave,
		}))
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", routes.Metrics)
	}

	return requestID(accessLog(logger, mux))
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}

func methods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	allow := ""
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if _, ok := handlers[m]; ok {
			if allow != "" {
				allow += ", "
			}
			allow += m
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
