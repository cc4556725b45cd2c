package middleware

import (
	"net/http"

	"github.com/Nzyazin/schoolwallet/internal/core/logger"
)

// ErrorHandler answers requests the router could not match with the same JSON
// envelope the wallet endpoints use.
type ErrorHandler struct {
	code    int
	message string
	log     logger.Logger
}

func NotFound(log logger.Logger) http.Handler {
	return &ErrorHandler{code: http.StatusNotFound, message: "Resource not found", log: log}
}

func MethodNotAllowed(log logger.Logger) http.Handler {
	return &ErrorHandler{code: http.StatusMethodNotAllowed, message: "Method not allowed", log: log}
}

func (eh *ErrorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eh.log.Warn("unmatched request",
		logger.StringField("method", r.Method),
		logger.StringField("path", r.URL.Path),
		logger.IntField("status", eh.code),
	)
	writeError(w, eh.code, eh.message)
}
