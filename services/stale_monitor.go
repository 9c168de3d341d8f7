package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vinin2308/foodflow-cardapio/models"
)

// StaleMonitor cancels pending comandas nobody touched for MaxIdle, freeing
// their tables. Runs until Stop is called.
type StaleMonitor struct {
	Service  *TabService
	StopChan chan struct{}
	Interval time.Duration
	MaxIdle  time.Duration
	logger   *logrus.Logger
}

func NewStaleMonitor(service *TabService, logger *logrus.Logger) *StaleMonitor {
	return &StaleMonitor{
		Service:  service,
		StopChan: make(chan struct{}),
		Interval: 1 * time.Minute,
		MaxIdle:  3 * time.Hour,
		logger:   logger,
	}
}

func (sm *StaleMonitor) Start() {
	go func() {
		ticker := time.NewTicker(sm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sm.sweep()
			case <-sm.StopChan:
				return
			}
		}
	}()
}

func (sm *StaleMonitor) Stop() {
	close(sm.StopChan)
}

func (sm *StaleMonitor) sweep() {
	cutoff := time.Now().Add(-sm.MaxIdle)

	var stale []models.Tab
	err := sm.Service.Store().DB().
		Where("status = ? AND updated_at < ?", models.StatusPending, cutoff).
		Find(&stale).Error
	if err != nil {
		sm.logger.Errorf("stale sweep query: %v", err)
		return
	}

	for _, tab := range stale {
		if _, err := sm.Service.TransitionStatus(tab.ID, ActionCancel, ""); err != nil {
			sm.logger.Errorf("cancelling stale tab %d: %v", tab.ID, err)
			continue
		}
		sm.logger.Infof("Cancelled stale comanda #%d (code %s, idle since %s)",
			tab.ID, tab.AccessCode, tab.UpdatedAt.Format(time.RFC3339))
	}
}
