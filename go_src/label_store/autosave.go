package label_store

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// StartAutosave starts a background job that flushes the store to the
// database whenever it is dirty. The returned scheduler must be shut down
// by the caller; a final explicit Save on exit is still recommended.
func StartAutosave(store *Store, db *DB, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("autosave interval must be positive, got %v", interval)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create autosave scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if !store.Dirty() {
				return
			}
			if err := db.Save(store); err != nil {
				logrus.Errorf("Label autosave failed: %v", err)
				return
			}
			logrus.Debugf("Label autosave flushed %d labels", store.Len())
		}),
		gocron.WithName("label-autosave"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to schedule label autosave: %w", err)
	}

	s.Start()
	logrus.Infof("Label autosave running every %v", interval)
	return s, nil
}
