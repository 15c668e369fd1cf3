package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/dto"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/store"
)

const (
	// DefaultCheckPeriod is how often past-due grants are harvested.
	DefaultCheckPeriod = time.Hour
	// DefaultNotificationHourUTC is the UTC hour of the daily expiry
	// notification scan.
	DefaultNotificationHourUTC = 8
	// DefaultLookAhead is how far ahead the notification scan looks.
	DefaultLookAhead = 7 * 24 * time.Hour
	// DefaultMisfireGrace is how late a fire may be before the catch-up run
	// is logged as coalesced.
	DefaultMisfireGrace = 10 * time.Minute

	// harvestBatchSize bounds how many expired grants one harvest query loads.
	harvestBatchSize = 100
)

type ExpiryConfig struct {
	CheckPeriod         time.Duration
	NotificationHourUTC int
	LookAhead           time.Duration
	MisfireGrace        time.Duration
}

func (c ExpiryConfig) withDefaults() ExpiryConfig {
	if c.CheckPeriod <= 0 {
		c.CheckPeriod = DefaultCheckPeriod
	}
	if c.NotificationHourUTC < 0 || c.NotificationHourUTC > 23 {
		c.NotificationHourUTC = DefaultNotificationHourUTC
	}
	if c.LookAhead <= 0 {
		c.LookAhead = DefaultLookAhead
	}
	if c.MisfireGrace <= 0 {
		c.MisfireGrace = DefaultMisfireGrace
	}
	return c
}

// job is one periodic task. The mutex guarantees a single live instance;
// rescheduling from the actual fire time coalesces missed fires into one run.
type job struct {
	name       string
	running    sync.Mutex
	next       time.Time
	reschedule func(now time.Time) time.Time
	run        func(ctx context.Context)
}

// ExpiryService is the background scheduler for grant expiry: an hourly
// harvest of past-due grants and a daily notification scan for grants
// expiring soon.
type ExpiryService struct {
	db              *store.DB
	grantStore      store.GrantStore
	auditEventStore store.AuditEventStore
	userStore       store.UserStore
	groupStore      store.GroupStore
	notifier        services.Notifier
	clock           clock.Clock
	config          ExpiryConfig

	jobs []*job

	started, shutdown   bool
	startStopMutex      sync.Mutex
	requestShutdownChan chan bool
	loopDoneChan        chan bool
	jobWaitGroup        sync.WaitGroup

	logger.Log
}

func NewExpiryService(
	db *store.DB,
	grantStore store.GrantStore,
	auditEventStore store.AuditEventStore,
	userStore store.UserStore,
	groupStore store.GroupStore,
	notifier services.Notifier,
	clk clock.Clock,
	config ExpiryConfig,
	logFactory logger.LogFactory,
) *ExpiryService {
	s := &ExpiryService{
		db:                  db,
		grantStore:          grantStore,
		auditEventStore:     auditEventStore,
		userStore:           userStore,
		groupStore:          groupStore,
		notifier:            notifier,
		clock:               clk,
		config:              config.withDefaults(),
		requestShutdownChan: make(chan bool),
		loopDoneChan:        make(chan bool),
		Log:                 logFactory("ExpiryService"),
	}
	now := s.clock.Now()
	s.jobs = []*job{
		{
			name: "harvest-expired-grants",
			next: now,
			reschedule: func(now time.Time) time.Time {
				return now.Add(s.config.CheckPeriod)
			},
			run: func(ctx context.Context) {
				err := s.HarvestExpiredGrants(ctx)
				if err != nil {
					s.Errorf("Error harvesting expired grants: %v", err)
				}
			},
		},
		{
			name: "expiry-notification-scan",
			next: s.nextDailyFire(now),
			reschedule: s.nextDailyFire,
			run: func(ctx context.Context) {
				err := s.SendExpiryNotifications(ctx)
				if err != nil {
					s.Errorf("Error sending expiry notifications: %v", err)
				}
			},
		},
	}
	return s
}

// nextDailyFire returns the next instant after now at the configured UTC hour.
func (s *ExpiryService) nextDailyFire(now time.Time) time.Time {
	utc := now.UTC()
	fire := time.Date(utc.Year(), utc.Month(), utc.Day(), s.config.NotificationHourUTC, 0, 0, 0, time.UTC)
	if !fire.After(utc) {
		fire = fire.Add(24 * time.Hour)
	}
	return fire
}

// Start begins the scheduler loop. The harvest job fires immediately to
// catch up on anything that expired while the service was down.
func (s *ExpiryService) Start() {
	s.startStopMutex.Lock()
	defer s.startStopMutex.Unlock()

	if s.shutdown {
		panic("Can not start ExpiryService again once it has been shut down")
	}
	if s.started {
		s.Warn("ExpiryService.Start() called but already started")
		return
	}
	s.Infof("Starting expiry scheduler (check period %s, notification hour %02d:00 UTC)",
		s.config.CheckPeriod, s.config.NotificationHourUTC)
	go s.loop()
	s.started = true
}

// Shutdown stops the scheduler loop and waits for any in-flight job to
// finish.
func (s *ExpiryService) Shutdown() {
	s.startStopMutex.Lock()
	defer s.startStopMutex.Unlock()

	if s.shutdown {
		s.Warn("ExpiryService.Shutdown() called but already shut down")
		return
	}
	if s.started {
		close(s.requestShutdownChan)
		<-s.loopDoneChan
		s.jobWaitGroup.Wait()
	}
	s.shutdown = true
	s.Infof("Expiry scheduler shut down")
}

func (s *ExpiryService) loop() {
	defer close(s.loopDoneChan)
	ctx := context.Background()
	for {
		now := s.clock.Now()
		s.fireDueJobs(ctx, now)

		next := s.jobs[0].next
		for _, j := range s.jobs[1:] {
			if j.next.Before(next) {
				next = j.next
			}
		}
		timer := s.clock.Timer(next.Sub(now))
		select {
		case <-timer.C:
		case <-s.requestShutdownChan:
			timer.Stop()
			return
		}
	}
}

func (s *ExpiryService) fireDueJobs(ctx context.Context, now time.Time) {
	for _, j := range s.jobs {
		if j.next.After(now) {
			continue
		}
		if lateness := now.Sub(j.next); lateness > s.config.MisfireGrace {
			s.Warnf("Job %s is %s late; coalescing missed fires into one run", j.name, lateness)
		}
		j.next = j.reschedule(now)
		if !j.running.TryLock() {
			s.Warnf("Job %s is still running; skipping this fire", j.name)
			continue
		}
		job := j
		s.jobWaitGroup.Add(1)
		go func() {
			defer s.jobWaitGroup.Done()
			defer job.running.Unlock()
			job.run(ctx)
		}()
	}
}

// HarvestExpiredGrants deletes every past-due grant, appending the expired
// audit event in the same transaction as each delete. A failing grant is
// logged and skipped; the rest of the batch proceeds.
func (s *ExpiryService) HarvestExpiredGrants(ctx context.Context) error {
	total := 0
	for {
		now := models.NewTime(s.clock.Now())
		expired, err := s.grantStore.ListExpired(ctx, nil, now, harvestBatchSize)
		if err != nil {
			return errors.Wrap(err, "error listing expired grants")
		}
		if len(expired) == 0 {
			break
		}
		harvested := 0
		for _, grant := range expired {
			err := s.harvestOne(ctx, grant)
			if err != nil {
				s.Errorf("Error expiring grant %s: %v", grant.ID, err)
				continue
			}
			harvested++
		}
		total += harvested
		// A batch that made no progress would refetch the same rows forever.
		if harvested == 0 || len(expired) < harvestBatchSize {
			break
		}
	}
	if total > 0 {
		s.Infof("Harvested %d expired grant(s)", total)
	}
	return nil
}

func (s *ExpiryService) harvestOne(ctx context.Context, grant *models.Grant) error {
	return s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		event := models.NewGrantAuditEvent(models.NewTime(s.clock.Now()), models.AuditEventExpired, models.ResourceID{}, grant, "expired")
		err := s.auditEventStore.Create(ctx, tx, event)
		if err != nil {
			return errors.Wrap(err, "error appending audit event")
		}
		return s.grantStore.Delete(ctx, tx, grant.ID)
	})
}

// SendExpiryNotifications warns each grantee about their grants expiring
// within the look-ahead window, one notification per grantee.
func (s *ExpiryService) SendExpiryNotifications(ctx context.Context) error {
	now := s.clock.Now()
	expiring, err := s.grantStore.ListExpiringBetween(ctx, nil, models.NewTime(now), models.NewTime(now.Add(s.config.LookAhead)))
	if err != nil {
		return errors.Wrap(err, "error listing expiring grants")
	}
	if len(expiring) == 0 {
		return nil
	}

	byGrantee := make(map[models.ResourceID]*dto.ExpiryNotification)
	var order []models.ResourceID
	for _, grant := range expiring {
		notification, seen := byGrantee[grant.GranteeID]
		if !seen {
			notification = &dto.ExpiryNotification{
				GranteeType: grant.GranteeType,
				GranteeID:   grant.GranteeID,
				GranteeName: s.resolveGranteeName(ctx, grant.GranteeType, grant.GranteeID),
			}
			byGrantee[grant.GranteeID] = notification
			order = append(order, grant.GranteeID)
		}
		notification.Grants = append(notification.Grants, grant)
	}

	for _, granteeID := range order {
		notification := byGrantee[granteeID]
		err := s.notifier.Notify(ctx, notification)
		if err != nil {
			s.Errorf("Error notifying %s %s: %v", notification.GranteeType, granteeID, err)
		}
	}
	s.Infof("Sent expiry notifications to %d grantee(s) covering %d grant(s)", len(order), len(expiring))
	return nil
}

func (s *ExpiryService) resolveGranteeName(ctx context.Context, granteeType models.GranteeType, granteeID models.ResourceID) string {
	switch granteeType {
	case models.UserGranteeType:
		user, err := s.userStore.Read(ctx, nil, models.UserIDFromResourceID(granteeID))
		if err == nil {
			return user.DisplayName()
		}
	case models.GroupGranteeType:
		group, err := s.groupStore.Read(ctx, nil, models.GroupIDFromResourceID(granteeID))
		if err == nil {
			return group.Name
		}
	}
	return granteeID.String()
}
