package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(documentJobsTotal, documentQueueDepth) }

var (
	documentJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_jobs_total",
			Help: "Document generation jobs by status (enqueued/completed/retried/dead/recovered).",
		},
		[]string{"status"},
	)

	documentQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "document_queue_depth",
			Help: "Jobs waiting in the document queue, by list (pending/processing).",
		},
		[]string{"list"},
	)
)

func IncDocumentJob(status string) {
	documentJobsTotal.WithLabelValues(norm(status)).Inc()
}

func IncDocumentJobs(status string, n int) {
	if n <= 0 {
		return
	}
	documentJobsTotal.WithLabelValues(norm(status)).Add(float64(n))
}

func SetDocumentQueueDepth(pending, processing int64) {
	documentQueueDepth.WithLabelValues("pending").Set(float64(pending))
	documentQueueDepth.WithLabelValues("processing").Set(float64(processing))
}
