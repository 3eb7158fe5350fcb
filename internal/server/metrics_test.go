package server

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordUpload(100, 10*time.Millisecond)
	m.RecordUpload(300, 30*time.Millisecond)
	m.RecordUploadError()
	m.RecordDownload(50, time.Millisecond)
	m.RecordLoginAttempt(true)
	m.RecordLoginAttempt(false)
	m.RecordLoginThrottled()
	m.RecordRequest(200)
	m.RecordRequest(404)
	m.RecordRequest(503)

	s := m.Snapshot()
	if s.UploadsTotal != 2 || s.UploadBytesTotal != 400 || s.UploadErrorsTotal != 1 {
		t.Fatalf("upload counters: %+v", s)
	}
	if s.UploadAvgDurationMs != 20 {
		t.Fatalf("UploadAvgDurationMs = %v, want 20", s.UploadAvgDurationMs)
	}
	if s.DownloadsTotal != 1 || s.DownloadBytesTotal != 50 {
		t.Fatalf("download counters: %+v", s)
	}
	if s.LoginAttemptsTotal != 2 || s.LoginSuccessTotal != 1 || s.LoginFailuresTotal != 1 || s.LoginThrottledTotal != 1 {
		t.Fatalf("login counters: %+v", s)
	}
	if s.RequestsTotal != 3 || s.RequestErrors4xx != 1 || s.RequestErrors5xx != 1 {
		t.Fatalf("request counters: %+v", s)
	}
}

func TestAvgDurationNoSamples(t *testing.T) {
	if got := avgDuration(time.Second, 0); got != 0 {
		t.Fatalf("avgDuration = %v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustLogin(t)
	env.upload(t, env.csrf(t), "a.txt", []byte("abc"))

	resp, body := env.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q", ct)
	}
	for _, want := range []string{
		"# TYPE filedrop_uploads_total counter",
		"filedrop_uploads_total 1\n",
		"filedrop_upload_bytes_total 3\n",
		"filedrop_login_success_total 1\n",
		`filedrop_info{version="test",commit="abc123"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestPrometheusLabelEscaping(t *testing.T) {
	if got := prometheusLabel("a\"b\\c\nd"); got != `a\"b\\c\nd` {
		t.Fatalf("prometheusLabel = %q", got)
	}
}
