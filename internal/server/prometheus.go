// prometheus.go - Prometheus text exposition of the in-process counters.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

type promMetric struct {
	name  string
	kind  string
	help  string
	value string
}

// metricsHandler serves GET /metrics in the Prometheus text format.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()
	i := func(v int64) string { return fmt.Sprintf("%d", v) }

	metrics := []promMetric{
		{"filedrop_requests_total", "counter", "Total number of HTTP requests", i(snap.RequestsTotal)},
		{"filedrop_request_errors_4xx_total", "counter", "HTTP responses with a 4xx status", i(snap.RequestErrors4xx)},
		{"filedrop_request_errors_5xx_total", "counter", "HTTP responses with a 5xx status", i(snap.RequestErrors5xx)},
		{"filedrop_uploads_total", "counter", "Completed uploads", i(snap.UploadsTotal)},
		{"filedrop_upload_bytes_total", "counter", "Bytes stored by completed uploads", i(snap.UploadBytesTotal)},
		{"filedrop_upload_errors_total", "counter", "Rejected or failed uploads", i(snap.UploadErrorsTotal)},
		{"filedrop_downloads_total", "counter", "Served downloads", i(snap.DownloadsTotal)},
		{"filedrop_download_bytes_total", "counter", "Size of files served for download", i(snap.DownloadBytesTotal)},
		{"filedrop_download_errors_total", "counter", "Failed download lookups", i(snap.DownloadErrorsTotal)},
		{"filedrop_deletes_total", "counter", "Deleted files", i(snap.DeletesTotal)},
		{"filedrop_delete_errors_total", "counter", "Failed deletes", i(snap.DeleteErrorsTotal)},
		{"filedrop_stale_uploads_removed_total", "counter", "Partial uploads removed by the cleanup job", i(snap.StaleUploadsRemoved)},
		{"filedrop_login_success_total", "counter", "Successful logins", i(snap.LoginSuccessTotal)},
		{"filedrop_login_failures_total", "counter", "Logins with a wrong password", i(snap.LoginFailuresTotal)},
		{"filedrop_login_throttled_total", "counter", "Logins refused by the rate limiter", i(snap.LoginThrottledTotal)},
		{"filedrop_sessions_expired_total", "counter", "Sessions rejected after a password change", i(snap.SessionsExpiredTotal)},
		{"filedrop_uptime_seconds", "counter", "Process uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.started).Seconds())},
	}

	var out strings.Builder
	out.WriteString("# HELP filedrop_info Build information\n")
	out.WriteString("# TYPE filedrop_info gauge\n")
	fmt.Fprintf(&out, "filedrop_info{version=\"%s\",commit=\"%s\"} 1\n\n",
		prometheusLabel(s.build.Version), prometheusLabel(s.build.Commit))

	for _, m := range metrics {
		fmt.Fprintf(&out, "# HELP %s %s\n# TYPE %s %s\n%s %s\n\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.String()))
}

// prometheusLabel escapes a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
