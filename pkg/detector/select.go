package detector

import (
	"github.com/sirupsen/logrus"
)

// Select picks the single backend the service runs with. The primary is used
// when it initialised and reports itself available; otherwise the fallback.
func Select(primary Backend, primaryErr error, fallback Backend, logger *logrus.Logger) Backend {
	if primaryErr == nil && primary != nil && primary.Available() {
		logger.WithFields(logrus.Fields{
			"backend": primary.Name(),
			"classes": primary.Vocabulary().Labels(),
		}).Info("Using model detector")
		return primary
	}

	fields := logrus.Fields{"backend": fallback.Name()}
	if primaryErr != nil {
		fields["reason"] = primaryErr.Error()
	}
	logger.WithFields(fields).Warn("Model detector unavailable, falling back to mock detector")

	return fallback
}
