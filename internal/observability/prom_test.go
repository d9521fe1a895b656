package observability

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var errMissing = errors.New("missing")

func TestObserveDB_Classification(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())
	p.ClassifyDBError(errMissing, classNotFound)

	_ = p.ObserveDB("users.get", func() error { return fmt.Errorf("get: %w", errMissing) })
	_ = p.ObserveDB("users.create", func() error { return &pgconn.PgError{Code: "23505"} })
	_ = p.ObserveDB("users.list", func() error { return errors.New("connection reset by peer") })

	assert.Equal(t, 3, testutil.CollectAndCount(p.DbQueryDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.get", classNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.list", "connection")))
}

func TestObserveHelpers_NilSafe(t *testing.T) {
	var p *Prom

	assert.NotPanics(t, func() {
		p.ObserveLogin("success")
		p.ObserveTokenVerification(true)
		p.ObserveGateDecision("header")
		p.ObserveRateLimited("/auth/login")
		_ = p.ObserveDB("noop", func() error { return nil })
	})
}

func TestObserveHelpers_Count(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	p.ObserveLogin("success")
	p.ObserveTokenVerification(false)
	p.ObserveTokenVerification(false)
	p.ObserveGateDecision("bearer")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.TokenVerifications.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.GateDecisions.WithLabelValues("bearer")))
}

func TestGinHandleMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewProm(prometheus.NewRegistry())

	r := gin.New()
	r.Use(p.GinHandleMiddleware())
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/abc", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(p.RequestsTotal.WithLabelValues("GET", "/users/:id", "200")))
}
