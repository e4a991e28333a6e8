package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating two managers with default options", func() {
			a := NewManager()
			b := NewManager()

			Convey("Then each gets its own registry", func() {
				So(a.Registry(), ShouldNotBeNil)
				So(a.Registry(), ShouldNotPointTo, b.Registry())
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithOffsetBuckets([]float64{0.1, 0.2}),
				WithRegistry(registry),
			)
			m.RecordTone()

			Convey("Then metrics use the configured names", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_tones_played_total")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given an enabled manager", t, func() {
		m := NewManager()

		Convey("When judgments are recorded", func() {
			m.RecordJudgment("correct", -0.05)
			m.RecordJudgment("correct", 0.1)
			m.RecordJudgment("missed", 0.3)

			Convey("Then they are counted by state", func() {
				So(testutil.ToFloat64(m.notesJudged.WithLabelValues("correct")), ShouldEqual, 2.0)
				So(testutil.ToFloat64(m.notesJudged.WithLabelValues("missed")), ShouldEqual, 1.0)
				So(testutil.CollectAndCount(m.pressOffset), ShouldEqual, 1)
			})
		})

		Convey("When session events are recorded", func() {
			m.RecordPress("match")
			m.RecordSectionEntered()
			m.RecordSectionEntered()
			m.RecordRepeatExhausted()
			m.SetPlaybackState(StatePaused)
			m.SetMIDIConnected(true)
			m.ObserveTick(time.Millisecond)
			m.RecordHTTPRequest("/api/state", http.MethodGet, http.StatusOK, time.Millisecond)

			Convey("Then the collectors reflect them", func() {
				So(testutil.ToFloat64(m.keyPresses.WithLabelValues("match")), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.sectionsEntered), ShouldEqual, 2.0)
				So(testutil.ToFloat64(m.repeatsExhausted), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.playbackState), ShouldEqual, 2.0)
				So(testutil.ToFloat64(m.midiConnected), ShouldEqual, 1.0)
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/state", "GET", "200")), ShouldEqual, 1.0)
			})
		})
	})

	Convey("Given a disabled or nil manager", t, func() {
		m := NewManager(WithMetricsEnabled(false))
		var nilManager *Manager

		Convey("Then recording is a no-op", func() {
			So(func() {
				m.RecordTone()
				nilManager.RecordTone()
				nilManager.RecordJudgment("correct", 0)
				nilManager.SetPlaybackState(StatePlaying)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(m.tonesPlayed), ShouldEqual, 0.0)
		})
	})
}

func TestMetricsHandler(t *testing.T) {
	Convey("Given a manager with recorded tones", t, func() {
		m := NewManager()
		m.RecordTone()

		Convey("When the handler is scraped", func() {
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then it exposes the trainer metrics", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(rec.Body.String(), "pianofall_trainer_tones_played_total 1"), ShouldBeTrue)
			})
		})
	})
}
