package database

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/vueswitch/internal/models"
)

// Recorder writes every successful reading to a repository. Storage
// errors are logged and never reach the switch.
type Recorder struct {
	repo   ReadingRepository
	logger *logrus.Logger
}

func NewRecorder(repo ReadingRepository, logger *logrus.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

func (r *Recorder) ObserveReading(ctx context.Context, reading models.Reading) {
	if err := r.repo.Insert(ctx, reading); err != nil {
		r.logger.WithFields(logrus.Fields{
			"channel": reading.Channel,
			"error":   err,
		}).Error("Failed to store reading")
	}
}

func (r *Recorder) ObserveFailure(context.Context, error) {}
