package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/logger"
	redisclient "github.com/richxcame/driver-verification/pkg/redis"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader is the HTTP header for idempotency keys
	IdempotencyKeyHeader = "Idempotency-Key"

	idempotentReplayHeader = "Idempotent-Replayed"
	idempotencyTTL         = 24 * time.Hour
	idempotencyLockTTL     = 2 * time.Minute
	idempotencyPrefix      = "idempotency:"
)

type idempotencyEntry struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
	RequestHash string          `json:"request_hash"`
}

type idempotencyResponseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *idempotencyResponseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key so
// a retried upload or review does not run twice. Keys are scoped per user. A
// second request arriving while the first is still running gets 409.
func Idempotency(redis redisclient.ClientInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 255 {
			common.AppErrorResponse(c, common.NewBadRequestError("Idempotency-Key is too long", nil))
			c.Abort()
			return
		}

		requestHash, err := hashRequest(c)
		if err != nil {
			common.AppErrorResponse(c, common.NewBadRequestError("failed to read request body", err))
			c.Abort()
			return
		}

		userID := "anonymous"
		if uid, err := GetUserID(c); err == nil {
			userID = uid.String()
		}
		ctx := c.Request.Context()
		redisKey := fmt.Sprintf("%s%s:%s", idempotencyPrefix, userID, key)
		lockKey := redisKey + ":lock"

		if cached, err := redis.GetString(ctx, redisKey); err == nil && cached != "" {
			var entry idempotencyEntry
			if err := json.Unmarshal([]byte(cached), &entry); err == nil {
				if entry.RequestHash != requestHash {
					common.AppErrorResponse(c, common.NewAppError(http.StatusUnprocessableEntity, common.CodeValidation,
						"Idempotency-Key has already been used with a different request", nil))
					c.Abort()
					return
				}
				c.Header(idempotentReplayHeader, "true")
				c.Data(entry.StatusCode, entry.ContentType, entry.Body)
				c.Abort()
				return
			}
		}

		acquired, err := redis.SetIfAbsent(ctx, lockKey, requestHash, idempotencyLockTTL)
		if err != nil {
			logger.WarnContext(ctx, "idempotency lock unavailable, continuing without it",
				zap.String("key", key),
				zap.Error(err),
			)
		} else if !acquired {
			common.AppErrorResponse(c, common.NewAppError(http.StatusConflict, common.CodeRequestActive,
				"a request with this Idempotency-Key is already in progress", nil))
			c.Abort()
			return
		}

		writer := &idempotencyResponseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status >= 200 && status < 300 {
			data, err := json.Marshal(idempotencyEntry{
				StatusCode:  status,
				ContentType: writer.Header().Get("Content-Type"),
				Body:        writer.body.Bytes(),
				RequestHash: requestHash,
			})
			if err == nil {
				err = redis.SetWithExpiration(ctx, redisKey, data, idempotencyTTL)
			}
			if err != nil {
				logger.WarnContext(ctx, "failed to store idempotent response",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}

		if acquired {
			if err := redis.Delete(ctx, lockKey); err != nil {
				logger.WarnContext(ctx, "failed to release idempotency lock", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

// hashRequest fingerprints method, path and body, restoring the body for the
// handler. Multipart bodies are left out: clients regenerate the boundary on
// retry and the file is too large to buffer twice.
func hashRequest(c *gin.Context) (string, error) {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte(c.Request.URL.Path))

	if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		h.Write(body)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
