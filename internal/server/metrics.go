package server

import (
	"sync"
	"time"
)

// Metrics holds in-process counters for the /metrics endpoint.
type Metrics struct {
	mu sync.RWMutex

	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	downloadsTotal        int64
	downloadBytesTotal    int64
	downloadErrorsTotal   int64
	downloadDurationTotal time.Duration

	deletesTotal      int64
	deleteErrorsTotal int64

	staleUploadsRemovedTotal int64

	loginAttemptsTotal   int64
	loginSuccessTotal    int64
	loginFailuresTotal   int64
	loginThrottledTotal  int64
	sessionsExpiredTotal int64

	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

func (m *Metrics) RecordDownload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
	m.downloadDurationTotal += duration
}

func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

func (m *Metrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletesTotal++
}

func (m *Metrics) RecordDeleteError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErrorsTotal++
}

func (m *Metrics) RecordStaleUploadsRemoved(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleUploadsRemovedTotal += int64(n)
}

// RecordLoginAttempt records a password check that was not throttled.
func (m *Metrics) RecordLoginAttempt(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginAttemptsTotal++
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailuresTotal++
	}
}

func (m *Metrics) RecordLoginThrottled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginThrottledTotal++
}

// RecordSessionExpired counts sessions rejected after a password change.
func (m *Metrics) RecordSessionExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsExpiredTotal++
}

func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:          m.uploadsTotal,
		UploadBytesTotal:      m.uploadBytesTotal,
		UploadErrorsTotal:     m.uploadErrorsTotal,
		UploadAvgDurationMs:   avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		DownloadsTotal:        m.downloadsTotal,
		DownloadBytesTotal:    m.downloadBytesTotal,
		DownloadErrorsTotal:   m.downloadErrorsTotal,
		DownloadAvgDurationMs: avgDuration(m.downloadDurationTotal, m.downloadsTotal),
		DeletesTotal:          m.deletesTotal,
		DeleteErrorsTotal:     m.deleteErrorsTotal,
		StaleUploadsRemoved:   m.staleUploadsRemovedTotal,
		LoginAttemptsTotal:    m.loginAttemptsTotal,
		LoginSuccessTotal:     m.loginSuccessTotal,
		LoginFailuresTotal:    m.loginFailuresTotal,
		LoginThrottledTotal:   m.loginThrottledTotal,
		SessionsExpiredTotal:  m.sessionsExpiredTotal,
		RequestsTotal:         m.requestsTotal,
		RequestErrors5xx:      m.requestErrors5xx,
		RequestErrors4xx:      m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	DownloadsTotal        int64   `json:"downloads_total"`
	DownloadBytesTotal    int64   `json:"download_bytes_total"`
	DownloadErrorsTotal   int64   `json:"download_errors_total"`
	DownloadAvgDurationMs float64 `json:"download_avg_duration_ms"`

	DeletesTotal      int64 `json:"deletes_total"`
	DeleteErrorsTotal int64 `json:"delete_errors_total"`

	StaleUploadsRemoved int64 `json:"stale_uploads_removed_total"`

	LoginAttemptsTotal   int64 `json:"login_attempts_total"`
	LoginSuccessTotal    int64 `json:"login_success_total"`
	LoginFailuresTotal   int64 `json:"login_failures_total"`
	LoginThrottledTotal  int64 `json:"login_throttled_total"`
	SessionsExpiredTotal int64 `json:"sessions_expired_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
