package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegistrationStatus string

const (
	StatusPending   RegistrationStatus = "pending"
	StatusConfirmed RegistrationStatus = "confirmed"
	StatusCancelled RegistrationStatus = "cancelled"
)

// NotProvided fills customer snapshot fields the user never set
const NotProvided = "not provided"

var (
	ErrAlreadyRegistered    = errors.New("service already registered by this user")
	ErrNotPending           = errors.New("registration is no longer pending")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrRegistrationNotFound = errors.New("registration not found")
)

// CanTransition reports whether a registration may move from one status to
// another. Only pending registrations move, and only to a terminal status.
func CanTransition(from, to RegistrationStatus) bool {
	return from == StatusPending && (to == StatusConfirmed || to == StatusCancelled)
}

// ServiceSnapshot is a copy of the service taken when the registration was
// created. Later edits or deletion of the service never reach it.
type ServiceSnapshot struct {
	ServiceName        string  `json:"serviceName"`
	ServicePrice       float64 `json:"servicePrice"`
	ServiceDescription string  `json:"serviceDescription"`
	ServiceImage       string  `json:"serviceImage"`
}

func SnapshotService(s Service) ServiceSnapshot {
	return ServiceSnapshot{
		ServiceName:        s.ServiceName,
		ServicePrice:       s.Price,
		ServiceDescription: s.Description,
		ServiceImage:       s.ImageURL,
	}
}

// CustomerSnapshot is a copy of the booking customer's contact details
type CustomerSnapshot struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerAddress string `json:"customerAddress"`
}

func SnapshotCustomer(u User) CustomerSnapshot {
	return CustomerSnapshot{
		CustomerName:    u.NameOrEmail(),
		CustomerEmail:   u.Email,
		CustomerPhone:   orNotProvided(u.Phone),
		CustomerAddress: orNotProvided(u.Address),
	}
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotProvided
	}
	return s
}

// Registration is a customer's booking of a service
type Registration struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	ServiceID string `json:"serviceId" gorm:"size:36;not null;uniqueIndex:idx_registration_user_service"`
	ServiceSnapshot `gorm:"embedded"`
	UserID           string `json:"userId" gorm:"size:36;not null;uniqueIndex:idx_registration_user_service"`
	CustomerSnapshot `gorm:"embedded"`

	AppointmentDate string             `json:"appointmentDate"` // "YYYY-MM-DD"
	AppointmentTime string             `json:"appointmentTime"` // "HH:MM" in 24h
	Location        string             `json:"location"`
	LocationName    string             `json:"locationName"`
	Status          RegistrationStatus `json:"status" gorm:"size:16;index"`
	RemindedAt      *time.Time         `json:"remindedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}

// UserRegistration is the lightweight copy kept under the customer's own
// subtree
type UserRegistration struct {
	RegistrationID  string             `json:"registrationId" gorm:"primaryKey;size:36"`
	UserID          string             `json:"userId" gorm:"size:36;index"`
	ServiceID       string             `json:"serviceId"`
	ServiceName     string             `json:"serviceName"`
	Status          RegistrationStatus `json:"status" gorm:"size:16"`
	AppointmentDate string             `json:"appointmentDate"`
	AppointmentTime string             `json:"appointmentTime"`
	Location        string             `json:"location"`
	LocationName    string             `json:"locationName"`
	CreatedAt       time.Time          `json:"createdAt"`
}

func (r Registration) Mirror() UserRegistration {
	return UserRegistration{
		RegistrationID:  r.ID,
		UserID:          r.UserID,
		ServiceID:       r.ServiceID,
		ServiceName:     r.ServiceName,
		Status:          r.Status,
		AppointmentDate: r.AppointmentDate,
		AppointmentTime: r.AppointmentTime,
		Location:        r.Location,
		LocationName:    r.LocationName,
		CreatedAt:       r.CreatedAt,
	}
}

// NewRegistration builds a pending registration from the current state of
// the service and the customer
func NewRegistration(service Service, customer User, date, at string, loc Location) Registration {
	return Registration{
		ServiceID:        service.ID,
		ServiceSnapshot:  SnapshotService(service),
		UserID:           customer.ID,
		CustomerSnapshot: SnapshotCustomer(customer),
		AppointmentDate:  date,
		AppointmentTime:  at,
		Location:         loc.ID,
		LocationName:     loc.Name,
		Status:           StatusPending,
	}
}

// CreateRegistration writes a pending registration and its mirror. The
// existence check and the insert share a transaction, and the unique index
// on (user_id, service_id) rejects whichever concurrent insert loses.
func CreateRegistration(db *gorm.DB, reg *Registration) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Registration{}).
			Where("user_id = ? AND service_id = ?", reg.UserID, reg.ServiceID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyRegistered
		}

		reg.Status = StatusPending
		if err := tx.Create(reg).Error; err != nil {
			if IsUniqueViolation(err) {
				return ErrAlreadyRegistered
			}
			return err
		}

		mirror := reg.Mirror()
		return tx.Create(&mirror).Error
	})
}

// TransitionRegistration moves a pending registration to a terminal status.
// The update only matches while the row is still pending, so a second
// confirm or cancel fails with ErrNotPending instead of overwriting.
func TransitionRegistration(db *gorm.DB, id string, to RegistrationStatus) (*Registration, error) {
	if !CanTransition(StatusPending, to) {
		return nil, fmt.Errorf("%w: to %q", ErrInvalidTransition, to)
	}

	var reg Registration
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Registration{}).
			Where("id = ? AND status = ?", id, StatusPending).
			Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			if err := tx.First(&reg, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRegistrationNotFound
				}
				return err
			}
			return fmt.Errorf("%w: registration is %s", ErrNotPending, reg.Status)
		}

		if err := tx.Model(&UserRegistration{}).
			Where("registration_id = ?", id).
			Update("status", to).Error; err != nil {
			return err
		}

		return tx.First(&reg, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CancelPendingRegistration deletes a customer's own registration and its
// mirror, provided it is still pending
func CancelPendingRegistration(db *gorm.DB, id, userID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ? AND status = ?", id, userID, StatusPending).
			Delete(&Registration{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			var reg Registration
			if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&reg).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRegistrationNotFound
				}
				return err
			}
			return fmt.Errorf("%w: registration is %s", ErrNotPending, reg.Status)
		}

		return tx.Where("registration_id = ?", id).Delete(&UserRegistration{}).Error
	})
}

// DueForReminder returns confirmed registrations on the given day that have
// not been reminded yet
func DueForReminder(db *gorm.DB, date string) ([]Registration, error) {
	var regs []Registration
	err := db.Where("status = ? AND appointment_date = ? AND reminded_at IS NULL", StatusConfirmed, date).
		Order("appointment_time asc").
		Find(&regs).Error
	return regs, err
}

func MarkReminded(db *gorm.DB, id string, at time.Time) error {
	return db.Model(&Registration{}).Where("id = ?", id).Update("reminded_at", at).Error
}

// IsUniqueViolation recognises duplicate-key errors from either driver,
// translated or raw
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
