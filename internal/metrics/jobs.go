package metrics

import "time"

// TrackJob marks a job in flight and returns the func that records how it
// ended: "completed" for a nil err, "retrying" when it will run again and
// "failed" otherwise.
func TrackJob(jobType string) func(err error, willRetry bool) {
	JobsInFlight.WithLabelValues(jobType).Inc()
	start := time.Now()

	return func(err error, willRetry bool) {
		JobsInFlight.WithLabelValues(jobType).Dec()
		JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			JobsTotal.WithLabelValues(jobType, "completed").Inc()
		case willRetry:
			JobsTotal.WithLabelValues(jobType, "retrying").Inc()
			JobRetriesTotal.WithLabelValues(jobType).Inc()
		default:
			JobsTotal.WithLabelValues(jobType, "failed").Inc()
		}
	}
}
