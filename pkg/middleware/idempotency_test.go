package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	redisclient "github.com/richxcame/driver-verification/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyRouter(client redisclient.ClientInterface, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/documents/:id/review", Idempotency(client), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"status": "approved"})
	})
	return r
}

func TestIdempotency_FirstRequestStoresResponse(t *testing.T) {
	db, mock := redismock.NewClientMock()
	calls := 0
	r := newIdempotencyRouter(redisclient.NewFromClient(db), &calls)

	key := "idempotency:anonymous:abc"
	mock.ExpectGet(key).RedisNil()
	mock.Regexp().ExpectSetNX(key+":lock", `.*`, idempotencyLockTTL).SetVal(true)
	mock.Regexp().ExpectSet(key, `.*`, idempotencyTTL).SetVal("OK")
	mock.ExpectDel(key + ":lock").SetVal(1)

	req := httptest.NewRequest(http.MethodPost, "/documents/1/review", strings.NewReader(`{"status":"approved"}`))
	req.Header.Set(IdempotencyKeyHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	db, mock := redismock.NewClientMock()
	calls := 0
	r := newIdempotencyRouter(redisclient.NewFromClient(db), &calls)

	body := `{"status":"approved"}`
	req := httptest.NewRequest(http.MethodPost, "/documents/1/review", strings.NewReader(body))
	req.Header.Set(IdempotencyKeyHeader, "abc")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/documents/1/review", strings.NewReader(body))
	hash, err := hashRequest(c)
	require.NoError(t, err)

	stored, err := json.Marshal(idempotencyEntry{
		StatusCode:  http.StatusOK,
		ContentType: "application/json; charset=utf-8",
		Body:        json.RawMessage(`{"status":"approved"}`),
		RequestHash: hash,
	})
	require.NoError(t, err)
	mock.ExpectGet("idempotency:anonymous:abc").SetVal(string(stored))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(idempotentReplayHeader))
	assert.JSONEq(t, `{"status":"approved"}`, w.Body.String())
	assert.Equal(t, 0, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_DifferentPayloadRejected(t *testing.T) {
	db, mock := redismock.NewClientMock()
	calls := 0
	r := newIdempotencyRouter(redisclient.NewFromClient(db), &calls)

	stored, _ := json.Marshal(idempotencyEntry{StatusCode: 200, Body: json.RawMessage(`{}`), RequestHash: "other"})
	mock.ExpectGet("idempotency:anonymous:abc").SetVal(string(stored))

	req := httptest.NewRequest(http.MethodPost, "/documents/1/review", strings.NewReader(`{"status":"rejected"}`))
	req.Header.Set(IdempotencyKeyHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotency_InProgressConflict(t *testing.T) {
	db, mock := redismock.NewClientMock()
	calls := 0
	r := newIdempotencyRouter(redisclient.NewFromClient(db), &calls)

	key := "idempotency:anonymous:abc"
	mock.ExpectGet(key).RedisNil()
	mock.Regexp().ExpectSetNX(key+":lock", `.*`, idempotencyLockTTL).SetVal(false)

	req := httptest.NewRequest(http.MethodPost, "/documents/1/review", strings.NewReader(`{}`))
	req.Header.Set(IdempotencyKeyHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	calls := 0
	r := newIdempotencyRouter(redisclient.NewFromClient(db), &calls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents/1/review", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_FailedResponseNotStored(t *testing.T) {
	db, mock := redismock.NewClientMock()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/fail", Idempotency(redisclient.NewFromClient(db)), func(c *gin.Context) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "storage"})
	})

	key := "idempotency:anonymous:k"
	mock.ExpectGet(key).RedisNil()
	mock.Regexp().ExpectSetNX(key+":lock", `.*`, idempotencyLockTTL).SetVal(true)
	mock.ExpectDel(key + ":lock").SetVal(1)

	req := httptest.NewRequest(http.MethodPost, "/fail", nil)
	req.Header.Set(IdempotencyKeyHeader, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
