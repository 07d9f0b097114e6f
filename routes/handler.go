package routes

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"finco/txcoordinator/common"
	"finco/txcoordinator/coordinator"
	"finco/txcoordinator/errors"
)

var guard *coordinator.Guard

// SetupGuard injects the idempotency guard used by the wrapped routes.
func SetupGuard(g *coordinator.Guard) {
	guard = g
}

// bodyCaptureWriter tees the handler's response so a completed operation can
// be snapshotted for replay.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// HandleWithIdempotency wraps a state-changing handler with the idempotency
// guard. Without an Idempotency-Key header the handler runs unguarded. With
// one, a retry carrying the same key and body gets the original response
// back; reusing the key for a different body is rejected.
//
// Only successful responses are cached: when the handler errors the claim is
// released, so a retry with the same key executes fresh.
func HandleWithIdempotency(f func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(common.HeaderIdempotencyKey)
		if guard == nil || key == "" {
			f(c)
			return
		}

		callerID := c.Request.Header.Get(common.HeaderUserID)
		if callerID == "" {
			common.RespondError(c, errors.Ef(errors.BadRequest, "routes.HandleWithIdempotency", errors.ClientUserIdError))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			common.RespondError(c, errors.E(errors.BadRequest, "routes.HandleWithIdempotency", err))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// the concrete path, not the route template: the proposal id in the
		// URL is part of the request identity
		fingerprint := coordinator.Fingerprint(
			[]byte(c.Request.Method),
			[]byte(c.Request.URL.Path),
			body,
		)

		decision, err := guard.Begin(c.Request.Context(), callerID, key, fingerprint)
		if err != nil {
			common.RespondError(c, err)
			return
		}

		if decision.Replay != nil {
			c.Header(common.HeaderIdempotentHit, "true")
			c.Data(decision.Replay.ResponseCode, "application/json", decision.Replay.ResponseBody)
			c.Abort()
			return
		}

		w := &bodyCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		f(c)
		c.Writer = w.ResponseWriter

		status := w.Status()
		if status < http.StatusMultipleChoices {
			if err := guard.Complete(c.Request.Context(), callerID, key, status, w.buf.Bytes()); err != nil {
				log.Error("failed to complete idempotency record: ", err)
			}
			return
		}

		if err := guard.Release(c.Request.Context(), callerID, key); err != nil {
			log.Error("failed to release idempotency claim: ", err)
		}
	}
}

// HandlerWrap validates a request
func HandlerWrap(f func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		f(c)
	}
}
