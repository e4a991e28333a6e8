package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pianofall "github.com/cbegin/pianofall-go"
	"github.com/cbegin/pianofall-go/internal/api"
	"github.com/cbegin/pianofall-go/internal/score"
	"github.com/cbegin/pianofall-go/internal/section"
	"github.com/cbegin/pianofall-go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

type mockSource struct {
	snap     pianofall.Snapshot
	notes    []pianofall.Note
	meta     pianofall.Metadata
	metaErr  error
	sections []section.Info
}

func (m *mockSource) Snapshot() pianofall.Snapshot { return m.snap }
func (m *mockSource) Notes() []pianofall.Note      { return m.notes }
func (m *mockSource) Metadata() (pianofall.Metadata, error) {
	return m.meta, m.metaErr
}
func (m *mockSource) Sections() []section.Info { return m.sections }

func get(h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServerRoutes(t *testing.T) {
	Convey("Given an API server over a playing session", t, func() {
		src := &mockSource{
			snap: pianofall.Snapshot{
				SessionID: "abc",
				Loaded:    true,
				Playing:   true,
				Now:       4.5,
				Speed:     1,
				Section:   1,
				Tally:     pianofall.Tally{Correct: 3, Missed: 1, Total: 8},
				Accuracy:  0.75,
				Held:      map[int]string{60: score.ColorKeyPressed},
			},
			notes: []pianofall.Note{
				{Pitch: 60, Start: 2, Duration: 0.5, Hand: score.HandLeft, Finger: 1, Color: score.ColorCorrect, State: score.Correct},
			},
			meta: pianofall.Metadata{BPM: 120, Numerator: 4, Denominator: 4, Duration: 9, LeadIn: 2, NoteCount: 1,
				MeasureBoundaries: []float64{2, 4}},
			sections: []section.Info{{Index: 0, Label: "Line 1", Start: 2, End: 4}},
		}
		m := metrics.NewManager()
		h := api.NewServer(src, m).Handler()

		Convey("GET /api/state returns the snapshot", func() {
			w := get(h, "/api/state", nil)
			So(w.Code, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["session_id"], ShouldEqual, "abc")
			So(body["now"], ShouldEqual, 4.5)
			tally := body["tally"].(map[string]any)
			So(tally["correct"], ShouldEqual, 3.0)
			So(tally["accuracy"], ShouldEqual, 0.75)
			So(body["held"], ShouldContainKey, "60")
		})

		Convey("GET /api/notes returns note states by name", func() {
			w := get(h, "/api/notes", nil)
			So(w.Code, ShouldEqual, http.StatusOK)

			var notes []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &notes), ShouldBeNil)
			So(notes, ShouldHaveLength, 1)
			So(notes[0]["state"], ShouldEqual, "correct")
			So(notes[0]["hand"], ShouldEqual, "left")
		})

		Convey("GET /api/score returns metadata and sections", func() {
			w := get(h, "/api/score", nil)
			So(w.Code, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["bpm"], ShouldEqual, 120.0)
			sections := body["sections"].([]any)
			So(sections, ShouldHaveLength, 1)
			So(sections[0].(map[string]any)["label"], ShouldEqual, "Line 1")
		})

		Convey("GET /api/score without a score is a 404", func() {
			src.metaErr = pianofall.ErrNoScore
			w := get(h, "/api/score", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, "no_score")
		})

		Convey("Requests are counted per route", func() {
			get(h, "/api/state", nil)
			get(h, "/api/state", nil)
			n, err := testutil.GatherAndCount(m.Registry(), "pianofall_trainer_http_requests_total")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			w := get(h, "/metrics", nil)
			So(w.Body.String(), ShouldContainSubstring, `pianofall_trainer_http_requests_total{method="GET",route="state",status_code="200"} 2`)
		})

		Convey("Browser origins are allowed", func() {
			w := get(h, "/api/state", map[string]string{"Origin": "http://localhost:5173"})
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("Unknown routes are not found", func() {
			w := get(h, "/api/unknown", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
