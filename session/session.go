// Package session resolves a signed-in principal to the role-gated session
// that drives navigation and authorization.
package session

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/models"
	"github.com/meinhoongagan/spa-app/navigation"
)

// ErrLookupFailed means the user record could not be read. It is never
// reported as "no record".
var ErrLookupFailed = errors.New("user lookup failed")

type Session interface {
	Stack() navigation.Stack
	// UserID is the principal id, empty when signed out
	UserID() string
	// Record is the user record, nil when signed out or when none exists
	Record() *models.User
	Role() models.Role
}

type Unauthenticated struct{}

type Admin struct {
	User models.User
}

// Customer covers signed-in principals that are not admins, including ones
// with no user record (User is nil).
type Customer struct {
	ID   string
	User *models.User
}

func (Unauthenticated) Stack() navigation.Stack { return navigation.StackUnauthenticated }
func (Unauthenticated) UserID() string          { return "" }
func (Unauthenticated) Record() *models.User    { return nil }
func (Unauthenticated) Role() models.Role       { return "" }

func (a Admin) Stack() navigation.Stack { return navigation.StackAdmin }
func (a Admin) UserID() string          { return a.User.ID }
func (a Admin) Record() *models.User    { u := a.User; return &u }
func (a Admin) Role() models.Role       { return models.RoleAdmin }

func (c Customer) Stack() navigation.Stack { return navigation.StackCustomer }
func (c Customer) UserID() string          { return c.ID }
func (c Customer) Record() *models.User    { return c.User }

func (c Customer) Role() models.Role {
	if c.User == nil {
		return ""
	}
	return c.User.Role
}

// Resolve looks up the user record of principalID. An empty principal is
// signed out.
func Resolve(ctx context.Context, db *gorm.DB, principalID string) (Session, error) {
	if principalID == "" {
		return Unauthenticated{}, nil
	}

	var user models.User
	err := db.WithContext(ctx).First(&user, "id = ?", principalID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Customer{ID: principalID}, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	return ForUser(user), nil
}

// ForUser picks the session of a signed-in principal with a user record
func ForUser(user models.User) Session {
	if navigation.StackFor(true, user.Role) == navigation.StackAdmin {
		return Admin{User: user}
	}
	return Customer{ID: user.ID, User: &user}
}

// View is the JSON shape of a session
type View struct {
	Stack         navigation.Stack    `json:"stack"`
	Screens       []navigation.Screen `json:"screens"`
	InitialScreen navigation.Screen   `json:"initialScreen"`
	UserID        string              `json:"userId,omitempty"`
	Role          models.Role         `json:"role,omitempty"`
	User          *models.User        `json:"user"`
}

func ViewOf(s Session) View {
	return View{
		Stack:         s.Stack(),
		Screens:       navigation.Screens(s.Stack()),
		InitialScreen: navigation.InitialScreen(s.Stack()),
		UserID:        s.UserID(),
		Role:          s.Role(),
		User:          s.Record(),
	}
}
