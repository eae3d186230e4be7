package activity

import (
	"time"

	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
)

// MaxEntries bounds the activity log; older entries are trimmed on insert.
const MaxEntries = 100

// Repos holds repositories needed for activity use cases.
type Repos struct {
	Activity     domain.ActivityRepository
	Notification domain.NotificationRepository
}

// UseCase records lifecycle activity and publishes notifications.
type UseCase struct {
	Repos *Repos
	// Notifier delivers notifications outside the process. Optional.
	Notifier model.NotifierPort
	// Now defaults to time.Now.
	Now func() time.Time
}

func (u *UseCase) now() time.Time {
	if u.Now != nil {
		return u.Now().UTC()
	}
	return time.Now().UTC()
}
