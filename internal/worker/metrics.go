package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	jobsTotal            *prometheus.CounterVec
	jobDuration          *prometheus.HistogramVec
	activeJobs           prometheus.Gauge
	outputsTotal         *prometheus.CounterVec
	pixelsConvertedTotal prometheus.Counter
	bytesWrittenTotal    prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rasterflow_worker_jobs_total",
			Help: "Total worker jobs by source type and final status.",
		}, []string{"source_type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rasterflow_worker_job_duration_seconds",
			Help:    "Total processing duration for each worker job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rasterflow_worker_active_jobs",
			Help: "Current number of active conversion jobs in the worker.",
		}),
		outputsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rasterflow_worker_outputs_total",
			Help: "Total converted outputs emitted by the worker, by target format.",
		}, []string{"format"}),
		pixelsConvertedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rasterflow_usage_pixels_converted_total",
			Help: "Total pixels pushed through the converter across successful jobs.",
		}),
		bytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rasterflow_usage_bytes_written_total",
			Help: "Total output bytes written across successful jobs.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rasterflow_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful jobs.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.outputsTotal,
		m.pixelsConvertedTotal,
		m.bytesWrittenTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
