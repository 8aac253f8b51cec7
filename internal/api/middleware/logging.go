package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"tradegate/internal/metrics"
	"tradegate/pkg/utils"
)

// Observer часть реестра метрик для HTTP запросов
type Observer interface {
	IncCounter(name string, labels metrics.Labels, delta float64) error
	ObserveHistogram(name string, labels metrics.Labels, value float64) error
}

// responseWriter запоминает статус и размер ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Hijack нужен для апгрейда до WebSocket
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// RequestIDHeader заголовок идентификатора запроса; входящий сохраняется, иначе генерируется
const RequestIDHeader = "X-Request-ID"

// Logging - middleware для логирования HTTP запросов
//
// Пишет в лог метод, шаблон маршрута, статус, длительность и размер
// ответа. Если m не nil, считает http_requests_total{method,route,status}
// и http_request_duration_ms{method,route}. Метка route берётся из шаблона
// mux, поэтому символы в пути не раздувают число серий.
func Logging(log *utils.Logger, m Observer) mux.MiddlewareFunc {
	if log == nil {
		log = utils.L()
	}
	log = log.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			route := routeTemplate(r)

			fields := []utils.Field{
				utils.String("method", r.Method),
				utils.String("path", r.URL.Path),
				utils.Int("status", wrapped.statusCode),
				utils.Latency(duration),
				utils.String("remote", r.RemoteAddr),
				utils.Int64("bytes", wrapped.written),
			}
			reqLog := log.WithRequestID(reqID)
			switch {
			case wrapped.statusCode >= 500:
				reqLog.Error("request", fields...)
			case wrapped.statusCode >= 400:
				reqLog.Warn("request", fields...)
			default:
				reqLog.Debug("request", fields...)
			}

			if m != nil {
				_ = m.IncCounter(metrics.HTTPRequests, metrics.Labels{
					"method": r.Method,
					"route":  route,
					"status": strconv.Itoa(wrapped.statusCode),
				}, 1)
				_ = m.ObserveHistogram(metrics.HTTPRequestDurationMs, metrics.Labels{
					"method": r.Method,
					"route":  route,
				}, float64(duration.Microseconds())/1000)
			}
		})
	}
}

// routeTemplate шаблон маршрута mux или "unmatched"
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
