package models_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/testutil"
)

func seed(t *testing.T, conn *gorm.DB) (models.Service, models.User) {
	t.Helper()
	service := models.Service{ServiceName: "Massage", Price: 500000, Description: "Full body"}
	require.NoError(t, conn.Create(&service).Error)
	customer := models.User{ID: "cust-1", DisplayName: "Lan", Email: "lan@example.com", Role: models.RoleCustomer}
	require.NoError(t, conn.Create(&customer).Error)
	return service, customer
}

func newRegistration(service models.Service, customer models.User) models.Registration {
	loc, _ := models.LookupLocation("hanoi")
	return models.NewRegistration(service, customer, "2024-06-01", "10:30", loc)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.RegistrationStatus
		want     bool
	}{
		{models.StatusPending, models.StatusConfirmed, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusPending, models.StatusPending, false},
		{models.StatusConfirmed, models.StatusCancelled, false},
		{models.StatusCancelled, models.StatusConfirmed, false},
		{models.StatusConfirmed, models.StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, models.CanTransition(tt.from, tt.to))
		})
	}
}

func TestSnapshotCustomer(t *testing.T) {
	snap := models.SnapshotCustomer(models.User{Email: "a@b.com"})
	assert.Equal(t, "a@b.com", snap.CustomerName)
	assert.Equal(t, models.NotProvided, snap.CustomerPhone)
	assert.Equal(t, models.NotProvided, snap.CustomerAddress)
}

func TestCreateRegistration(t *testing.T) {
	conn := testutil.SetupDB(t)
	service, customer := seed(t, conn)

	t.Run("Should create a pending registration with its mirror", func(t *testing.T) {
		reg := newRegistration(service, customer)
		require.NoError(t, models.CreateRegistration(conn, &reg))
		assert.NotEmpty(t, reg.ID)
		assert.Equal(t, models.StatusPending, reg.Status)
		assert.Equal(t, "Massage", reg.ServiceName)
		assert.Equal(t, float64(500000), reg.ServicePrice)
		assert.Equal(t, "Lan", reg.CustomerName)
		assert.Equal(t, "Hà Nội", reg.LocationName)

		var mirror models.UserRegistration
		require.NoError(t, conn.First(&mirror, "registration_id = ?", reg.ID).Error)
		assert.Equal(t, customer.ID, mirror.UserID)
		assert.Equal(t, models.StatusPending, mirror.Status)
	})

	t.Run("Should reject a second registration for the same service", func(t *testing.T) {
		reg := newRegistration(service, customer)
		err := models.CreateRegistration(conn, &reg)
		assert.ErrorIs(t, err, models.ErrAlreadyRegistered)

		var count int64
		conn.Model(&models.Registration{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func TestCreateRegistration_ConcurrentDoubleSubmit(t *testing.T) {
	conn := testutil.SetupDB(t)
	service, customer := seed(t, conn)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg := newRegistration(service, customer)
			errs <- models.CreateRegistration(conn, &reg)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	conn.Model(&models.Registration{}).Where("user_id = ? AND service_id = ?", customer.ID, service.ID).Count(&count)
	assert.Equal(t, int64(1), count)
	conn.Model(&models.UserRegistration{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTransitionRegistration(t *testing.T) {
	conn := testutil.SetupDB(t)
	service, customer := seed(t, conn)
	reg := newRegistration(service, customer)
	require.NoError(t, models.CreateRegistration(conn, &reg))

	t.Run("Should reject a non-terminal target", func(t *testing.T) {
		_, err := models.TransitionRegistration(conn, reg.ID, models.StatusPending)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("Should confirm a pending registration and its mirror", func(t *testing.T) {
		updated, err := models.TransitionRegistration(conn, reg.ID, models.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, updated.Status)

		var mirror models.UserRegistration
		require.NoError(t, conn.First(&mirror, "registration_id = ?", reg.ID).Error)
		assert.Equal(t, models.StatusConfirmed, mirror.Status)
	})

	t.Run("Should not overwrite a terminal status", func(t *testing.T) {
		_, err := models.TransitionRegistration(conn, reg.ID, models.StatusCancelled)
		assert.ErrorIs(t, err, models.ErrNotPending)

		var stored models.Registration
		require.NoError(t, conn.First(&stored, "id = ?", reg.ID).Error)
		assert.Equal(t, models.StatusConfirmed, stored.Status)
	})

	t.Run("Should report unknown registrations", func(t *testing.T) {
		_, err := models.TransitionRegistration(conn, "missing", models.StatusConfirmed)
		assert.ErrorIs(t, err, models.ErrRegistrationNotFound)
	})
}

func TestTransitionRegistration_ConcurrentAdmins(t *testing.T) {
	conn := testutil.SetupDB(t)
	service, customer := seed(t, conn)
	reg := newRegistration(service, customer)
	require.NoError(t, models.CreateRegistration(conn, &reg))

	targets := []models.RegistrationStatus{models.StatusConfirmed, models.StatusCancelled, models.StatusConfirmed, models.StatusCancelled}
	var wg sync.WaitGroup
	results := make(chan error, len(targets))
	for _, to := range targets {
		wg.Add(1)
		go func(to models.RegistrationStatus) {
			defer wg.Done()
			_, err := models.TransitionRegistration(conn, reg.ID, to)
			results <- err
		}(to)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, models.ErrNotPending)
	}
	assert.Equal(t, 1, wins)
}

func TestCancelPendingRegistration(t *testing.T) {
	conn := testutil.SetupDB(t)
	service, customer := seed(t, conn)

	t.Run("Should delete a pending registration and its mirror", func(t *testing.T) {
		reg := newRegistration(service, customer)
		require.NoError(t, models.CreateRegistration(conn, &reg))

		require.NoError(t, models.CancelPendingRegistration(conn, reg.ID, customer.ID))

		var count int64
		conn.Model(&models.Registration{}).Where("id = ?", reg.ID).Count(&count)
		assert.Zero(t, count)
		conn.Model(&models.UserRegistration{}).Where("registration_id = ?", reg.ID).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("Should refuse once confirmed", func(t *testing.T) {
		reg := newRegistration(service, customer)
		require.NoError(t, models.CreateRegistration(conn, &reg))
		_, err := models.TransitionRegistration(conn, reg.ID, models.StatusConfirmed)
		require.NoError(t, err)

		err = models.CancelPendingRegistration(conn, reg.ID, customer.ID)
		assert.ErrorIs(t, err, models.ErrNotPending)
	})

	t.Run("Should not cancel another customer's registration", func(t *testing.T) {
		other := models.Service{ServiceName: "Facial", Price: 300000}
		require.NoError(t, conn.Create(&other).Error)
		reg := newRegistration(other, customer)
		require.NoError(t, models.CreateRegistration(conn, &reg))

		err := models.CancelPendingRegistration(conn, reg.ID, "someone-else")
		assert.ErrorIs(t, err, models.ErrRegistrationNotFound)
	})
}

func TestServiceDeletionKeepsSnapshot(t *testing.T) {
	conn := testutil.SetupDB(t)
	service, customer := seed(t, conn)
	reg := newRegistration(service, customer)
	require.NoError(t, models.CreateRegistration(conn, &reg))

	require.NoError(t, conn.Model(&service).Update("price", 1).Error)
	require.NoError(t, conn.Delete(&models.Service{}, "id = ?", service.ID).Error)

	var stored models.Registration
	require.NoError(t, conn.First(&stored, "id = ?", reg.ID).Error)
	assert.Equal(t, "Massage", stored.ServiceName)
	assert.Equal(t, float64(500000), stored.ServicePrice)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestDueForReminder(t *testing.T) {
	conn := testutil.SetupDB(t)
	service, customer := seed(t, conn)
	reg := newRegistration(service, customer)
	require.NoError(t, models.CreateRegistration(conn, &reg))

	due, err := models.DueForReminder(conn, "2024-06-01")
	require.NoError(t, err)
	assert.Empty(t, due, "pending registrations are not reminded")

	_, err = models.TransitionRegistration(conn, reg.ID, models.StatusConfirmed)
	require.NoError(t, err)
	due, err = models.DueForReminder(conn, "2024-06-01")
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, models.MarkReminded(conn, reg.ID, time.Now()))
	due, err = models.DueForReminder(conn, "2024-06-01")
	require.NoError(t, err)
	assert.Empty(t, due)
}
