package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"
)

func TestDriveCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewDriveCollector(reg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Gatherer(), test.ShouldEqual, reg)

	c.ObserveRotation("unregulated", "reached", 300*time.Millisecond)
	c.ObserveRotation("unregulated", "stalled", 500*time.Millisecond)
	c.ObserveRotation("regulated", "reached", time.Second)

	test.That(t, testutil.ToFloat64(c.RotationsTotal.WithLabelValues("unregulated", "reached")), test.ShouldEqual, 1.0)
	test.That(t, testutil.ToFloat64(c.RotationsTotal.WithLabelValues("regulated", "reached")), test.ShouldEqual, 1.0)
	test.That(t, testutil.ToFloat64(c.StallsTotal), test.ShouldEqual, 1.0)
	test.That(t, testutil.CollectAndCount(c.RotationDuration), test.ShouldEqual, 2)

	// registering twice reuses the existing collectors
	again, err := NewDriveCollector(reg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, testutil.ToFloat64(again.StallsTotal), test.ShouldEqual, 1.0)
}

func TestNilDriveCollector(t *testing.T) {
	var c *DriveCollector
	c.ObserveRotation("regulated", "reached", time.Second)
	test.That(t, c.Gatherer(), test.ShouldBeNil)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewDriveCollector(reg)
	test.That(t, err, test.ShouldBeNil)
	c.ObserveRotation("regulated", "reached", time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(body), test.ShouldContainSubstring, `drive_rotations_total{model="regulated",outcome="reached"} 1`)
}
