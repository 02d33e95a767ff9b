package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/utils"
)

// Reminder mails customers the day before a confirmed appointment
type Reminder struct {
	DB       *gorm.DB
	Mailer   utils.Mailer
	Timezone string
	Now      func() time.Time
}

// StartCronJobs initializes and starts the cron scheduler for registration
// reminders. Stop the returned scheduler on shutdown.
func StartCronJobs(schedule string, r *Reminder) (*cron.Cron, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", r.Timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := r.Run(); err != nil {
			log.Error().Err(err).Msg("reminder run failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	c.Start()
	log.Info().Str("schedule", schedule).Str("timezone", r.Timezone).Msg("cron job scheduler started for registration reminders")
	return c, nil
}

// Run sends reminders for tomorrow's confirmed registrations that have not
// been reminded yet and returns how many were sent
func (r *Reminder) Run() (int, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	date := utils.Tomorrow(now(), r.Timezone)

	regs, err := models.DueForReminder(r.DB, date)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch registrations for reminders: %w", err)
	}
	log.Info().Str("date", date).Int("count", len(regs)).Msg("found registrations for reminders")

	sent := 0
	for i := range regs {
		reg := &regs[i]
		if err := r.Mailer.Send(reg.CustomerEmail, reminderSubject(reg), reminderBody(reg)); err != nil {
			log.Error().Err(err).Str("registration_id", reg.ID).Msg("failed to send reminder")
			continue
		}
		if err := models.MarkReminded(r.DB, reg.ID, now()); err != nil {
			log.Error().Err(err).Str("registration_id", reg.ID).Msg("failed to mark registration reminded")
			continue
		}
		sent++
		log.Info().Str("registration_id", reg.ID).Str("to", reg.CustomerEmail).Msg("sent reminder")
	}
	return sent, nil
}

func reminderSubject(reg *models.Registration) string {
	return fmt.Sprintf("Reminder: %s tomorrow at %s", reg.ServiceName, reg.AppointmentTime)
}

func reminderBody(reg *models.Registration) string {
	return fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>This is a reminder for your appointment tomorrow.</p>
		<p><strong>Details:</strong></p>
		<ul>
			<li><strong>Service:</strong> %s</li>
			<li><strong>Date:</strong> %s</li>
			<li><strong>Time:</strong> %s</li>
			<li><strong>Location:</strong> %s</li>
		</ul>
		<p>Please arrive on time. If you need to change your booking, contact us as soon as possible.</p>
		<p>Best regards,</p>
		<p>Your Spa Team</p>
	`, reg.CustomerName, reg.ServiceName, reg.AppointmentDate, reg.AppointmentTime, reg.LocationName)
}
