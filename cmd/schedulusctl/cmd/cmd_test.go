package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedulus-api/internal/models"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, data interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}
	mux.HandleFunc("/api/lessons", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, []models.Lesson{{ID: "l1", Subject: "CS101", Teacher: "Ada", StudentGroup: "G1"}})
	})
	mux.HandleFunc("/api/schedules/optimize", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusAccepted, models.OptimizationJob{ID: "job-1", Status: models.JobStatusPending, StartedAt: time.Now()})
	})
	mux.HandleFunc("/api/schedules/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		score := models.Score{HardScore: 0, SoftScore: 7}
		write(w, http.StatusOK, models.OptimizationJob{
			ID:       "job-1",
			Status:   models.JobStatusCompleted,
			Progress: 100,
			Result:   &models.TimetableValue{Timetable: models.Timetable{Score: &score}},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	buf := &bytes.Buffer{}
	out = buf
	outputFormat = "table"
	followJob = false
	t.Cleanup(func() { out = os.Stdout })
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func TestLessonsListTable(t *testing.T) {
	server := fakeAPI(t)

	output := runCLI(t, "--server", server.URL+"/api", "lessons", "list")
	assert.Contains(t, output, "CS101")
	assert.Contains(t, output, "G1")
}

func TestLessonsListJSON(t *testing.T) {
	server := fakeAPI(t)

	output := runCLI(t, "--server", server.URL+"/api", "--output", "json", "lessons", "list")
	var lessons []models.Lesson
	require.NoError(t, json.Unmarshal([]byte(output), &lessons))
	require.Len(t, lessons, 1)
	assert.Equal(t, "Ada", lessons[0].Teacher)
}

func TestOptimizeFollowPrintsFinalScore(t *testing.T) {
	server := fakeAPI(t)

	output := runCLI(t, "--server", server.URL+"/api", "optimize", "--follow", "--interval", "1ms")
	assert.Contains(t, output, "COMPLETED")
	assert.Contains(t, output, "0hard/7soft")
}
