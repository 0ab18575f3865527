package tls13d

import "github.com/sirupsen/logrus"

// log is the package-level base logger; drivers derive an entry from it
// with WithField so every log line carries the side (client or server),
// replacing the teacher's ad hoc logf(logType, format, args...)
// calls with structured fields a log aggregator can filter on.
var log = logrus.StandardLogger()

func driverLog(side string) *logrus.Entry {
	return log.WithField("side", side)
}
