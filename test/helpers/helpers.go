package helpers

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// PastRaceHeader is the header of the past race export in its default layout.
var PastRaceHeader = []string{"日付", "馬名", "着順", "場所", "距離", "馬場状態", "補正タイム", "補9", "クラス名", "騎手"}

// WritePastRaceCSV writes a past race export with a UTF-8 BOM and returns its path.
func WritePastRaceCSV(t *testing.T, rows [][]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "past_races.csv")
	f, err := os.Create(path)
	require.NoError(t, err, "failed to create past race file")
	defer f.Close()

	_, err = f.WriteString("\ufeff")
	require.NoError(t, err)

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(PastRaceHeader))
	require.NoError(t, w.WriteAll(rows))
	return path
}

// LoadFixture reads a file from dir.
func LoadFixture(t *testing.T, dir, filename string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err, "failed to read fixture file: %s", filename)
	return data
}

// MockYahooServer serves schedule.html, denma.html and odds.html from
// fixtureDir under the Yahoo! keiba paths. Race card pages exist only for
// the race IDs in races.
func MockYahooServer(t *testing.T, fixtureDir string, races map[string]bool) *httptest.Server {
	t.Helper()

	schedule := LoadFixture(t, fixtureDir, "schedule.html")
	denma := LoadFixture(t, fixtureDir, "denma.html")
	odds := LoadFixture(t, fixtureDir, "odds.html")

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	})
	mux.HandleFunc("/keiba/schedule/monthly", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(schedule)
	})
	mux.HandleFunc("/keiba/race/denma/", func(w http.ResponseWriter, r *http.Request) {
		if !races[strings.TrimPrefix(r.URL.Path, "/keiba/race/denma/")] {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(denma)
	})
	mux.HandleFunc("/keiba/race/odds/tfw/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(odds)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// WaitForCondition waits for a condition to become true or times out.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	require.Fail(t, "condition not met within timeout", message)
}
