package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"tradegate/pkg/utils"
)

// Recovery - middleware для восстановления после паники в handlers
//
// Логирует значение паники и stack trace, клиенту отдаёт 500 в формате
// ErrorResponse без деталей паники. Сервер продолжает обслуживать
// остальные запросы, /healthz и /metrics остаются доступны.
func Recovery(log *utils.Logger) mux.MiddlewareFunc {
	if log == nil {
		log = utils.L()
	}
	log = log.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered",
						utils.Any("panic", rec),
						utils.String("method", r.Method),
						utils.String("path", r.URL.Path),
						utils.String("stack", string(debug.Stack())),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"ok":false,"error":"internal server error","code":"INTERNAL_ERROR"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
