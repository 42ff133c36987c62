package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When a manager registers with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its collectors use the custom names", func() {
				So(m, ShouldNotBeNil)
				m.ledgerRetries.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_ledger_retries_total")
			})
		})

		Convey("When two managers share a registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When delivery and scoring metrics are recorded", func() {
			before := testutil.ToFloat64(globalManager.experienceAwarded.WithLabelValues("push"))
			RecordDeliveryReceived("push")
			RecordEventScored("push", 23)

			Convey("Then experience accumulates by kind", func() {
				after := testutil.ToFloat64(globalManager.experienceAwarded.WithLabelValues("push"))
				So(after-before, ShouldEqual, 23)
			})
		})

		Convey("When ledger outcomes are recorded", func() {
			before := testutil.ToFloat64(globalManager.ledgerWrites.WithLabelValues("failed"))
			RecordLedgerWrite("failed")
			RecordLedgerWrite("applied")
			RecordLedgerRetry()

			Convey("Then each outcome has its own series", func() {
				So(testutil.ToFloat64(globalManager.ledgerWrites.WithLabelValues("failed"))-before, ShouldEqual, 1)
			})
		})

		Convey("When gauges are set", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(10)
			UpdateWorkerCount(4)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
			})
		})

		Convey("When every recorder is called", func() {
			So(func() {
				RecordDeliveryDuplicate()
				RecordDeliveryIgnored("pull_request")
				RecordDeliveryRejected("malformed")
				RecordProcessingLatency(3)
				RecordDiffFetch("ok")
				RecordDiffLatency(12)
				RecordGitHubRetry()
				RecordLedgerWriteLatency(1)
				UpdateRepositoryRecordsTotal(2)
				UpdateRepositoryDocumentsTotal(3)
				RecordRepositoryUpdateLatency(1)
				RecordRepositoryQueryLatency(1)
				UpdateQueueUtilization(0.7)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(2)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(4)
				RecordWorkerError()
				RecordHTTPRequest("/webhook", "POST", "202")
				RecordHTTPRequestDuration("/webhook", "POST", "202", 1.5)
				RecordErrorByComponent("repository", "update")
				RecordErrorByEndpoint("/webhook", "POST", "bad_request")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)

			Convey("Then the custom registry exposes them under the gamebot namespace", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "gamebot_engine_"), ShouldBeTrue)
				}
			})
		})
	})
}
