package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DatasetLogger provides dedicated logging for historical data loading.
type DatasetLogger struct {
	*logrus.Entry
}

// NewDatasetLogger creates a new dataset logger.
func NewDatasetLogger(baseLogger *logrus.Logger) *DatasetLogger {
	return &DatasetLogger{
		Entry: baseLogger.WithField("component", "dataset"),
	}
}

// LogLoaded logs a completed load.
func (dl *DatasetLogger) LogLoaded(source string, totalRows, loaded int, dropped map[string]int, duration time.Duration) {
	fields := logrus.Fields{
		"source":      source,
		"total_rows":  totalRows,
		"loaded":      loaded,
		"duration_ms": duration.Milliseconds(),
	}
	for reason, n := range dropped {
		fields["dropped_"+reason] = n
	}
	dl.WithFields(fields).Info("Past race data loaded")
}

// LogLoadFailed logs a load that left the service without data.
func (dl *DatasetLogger) LogLoadFailed(source string, err error) {
	dl.WithField("source", source).WithError(err).Error("Past race data could not be loaded")
}
