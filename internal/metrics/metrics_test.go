package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandler(t *testing.T) {
	ts := httptest.NewServer(Handler())
	defer ts.Close()

	RecordFetch("GET", "200", true, "", time.Second, 11)
	RecordLogin("success")
	Extraction{}.FieldMissing("hint", false)
	Extraction{}.RecordDropped("myfinds", "incomplete")

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`gcparser_fetch_requests_total{authenticated="true",challenge="",method="GET",status="200"}`,
		`gcparser_fetch_duration_seconds_bucket`,
		`gcparser_fetch_bytes_total`,
		`gcparser_login_attempts_total{outcome="success"}`,
		`gcparser_fields_missing_total{mandatory="false",rule="hint"}`,
		`gcparser_records_dropped_total{reason="incomplete",rows="myfinds"}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestServer_StartStop(t *testing.T) {
	srv := Start(0, nil)
	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("unexpected stop error: %v", err)
	}
}
