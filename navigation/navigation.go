// Package navigation decides which screens a session can reach.
package navigation

import (
	"errors"
	"fmt"

	"github.com/meinhoongagan/spa-app/models"
)

type Stack string

const (
	StackUnauthenticated Stack = "unauthenticated"
	StackAdmin           Stack = "admin"
	StackCustomer        Stack = "customer"
)

type Screen string

const (
	ScreenLogin              Screen = "Login"
	ScreenRegister           Screen = "Register"
	ScreenResetPassword      Screen = "ResetPassword"
	ScreenHome               Screen = "Home"
	ScreenAddService         Screen = "AddService"
	ScreenServiceDetail      Screen = "ServiceDetail"
	ScreenEditService        Screen = "EditService"
	ScreenProfile            Screen = "Profile"
	ScreenAdminRegistrations Screen = "AdminRegistrations"
	ScreenRegisteredServices Screen = "RegisteredServices"
	ScreenRegistrationDetail Screen = "RegistrationDetail"
	ScreenTodos              Screen = "Todos"
)

var (
	ErrUnreachable  = errors.New("screen is not reachable from this stack")
	ErrMissingParam = errors.New("missing route parameter")
)

// first entry of each stack is its initial screen
var stacks = map[Stack][]Screen{
	StackUnauthenticated: {ScreenLogin, ScreenRegister, ScreenResetPassword},
	StackAdmin: {
		ScreenHome, ScreenAddService, ScreenServiceDetail, ScreenEditService,
		ScreenProfile, ScreenAdminRegistrations, ScreenTodos,
	},
	StackCustomer: {
		ScreenHome, ScreenServiceDetail, ScreenProfile, ScreenRegisteredServices,
		ScreenRegistrationDetail, ScreenTodos,
	},
}

var requiredParams = map[Screen][]string{
	ScreenServiceDetail:      {"serviceId"},
	ScreenEditService:        {"serviceId"},
	ScreenRegistrationDetail: {"registrationId"},
}

// StackFor maps a sign-in state to a stack. Any role other than admin,
// including none, lands on the customer stack once signed in.
func StackFor(authenticated bool, role models.Role) Stack {
	switch {
	case !authenticated:
		return StackUnauthenticated
	case role == models.RoleAdmin:
		return StackAdmin
	default:
		return StackCustomer
	}
}

// Screens returns a copy of the stack's screens
func Screens(s Stack) []Screen {
	return append([]Screen(nil), stacks[s]...)
}

func InitialScreen(s Stack) Screen {
	if screens := stacks[s]; len(screens) > 0 {
		return screens[0]
	}
	return ScreenLogin
}

func Reachable(s Stack, screen Screen) bool {
	for _, sc := range stacks[s] {
		if sc == screen {
			return true
		}
	}
	return false
}

func RequiredParams(screen Screen) []string {
	return append([]string(nil), requiredParams[screen]...)
}

// Route is a navigation request with its parameter bag
type Route struct {
	Screen Screen            `json:"screen"`
	Params map[string]string `json:"params,omitempty"`
}

func Validate(s Stack, r Route) error {
	if !Reachable(s, r.Screen) {
		return fmt.Errorf("%w: %s from %s", ErrUnreachable, r.Screen, s)
	}
	for _, p := range requiredParams[r.Screen] {
		if r.Params[p] == "" {
			return fmt.Errorf("%w: %s requires %s", ErrMissingParam, r.Screen, p)
		}
	}
	return nil
}
