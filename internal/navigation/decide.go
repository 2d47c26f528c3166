// Package navigation decides where an authenticated session lands.
package navigation

import (
	"fmt"
	"time"

	"github.com/edunirix/portal/internal/auth"
)

// Source identifies which call site asked for a decision.
type Source int

const (
	// SourceSubmit is the call made right after a successful credential submit.
	SourceSubmit Source = iota
	// SourcePassive is the call made when a session is observed without a submit,
	// e.g. a reload by an already authenticated user.
	SourcePassive
)

func (s Source) String() string {
	switch s {
	case SourceSubmit:
		return "submit"
	case SourcePassive:
		return "passive"
	default:
		return "unknown"
	}
}

const (
	// DefaultPasswordChangePath is the forced password change interstitial.
	DefaultPasswordChangePath = "/change-password"
	// DefaultDashboardPath is the landing page when nothing else was requested.
	DefaultDashboardPath = "/dashboard"

	// MustChangeDelay keeps the forced-change notice visible before redirecting.
	MustChangeDelay = 2 * time.Second

	firstLoginMessage = "Welcome %s! For security, please set a new password to continue."
	mustChangeMessage = "For security reasons, you must change your password before continuing."
)

// Outcome is where to go, what to tell the user and how long to wait first.
type Outcome struct {
	Destination string
	Message     string
	Delay       time.Duration
}

// HasMessage reports whether the outcome carries a notice for the user.
func (o *Outcome) HasMessage() bool {
	return o != nil && o.Message != ""
}

// Routes holds the two fixed destinations.
type Routes struct {
	PasswordChange string
	Dashboard      string
}

// DefaultRoutes returns the stock destinations.
func DefaultRoutes() Routes {
	return Routes{PasswordChange: DefaultPasswordChangePath, Dashboard: DefaultDashboardPath}
}

// WithDefaults fills empty destinations with the stock paths.
func (r Routes) WithDefaults() Routes {
	if r.PasswordChange == "" {
		r.PasswordChange = DefaultPasswordChangePath
	}
	if r.Dashboard == "" {
		r.Dashboard = DefaultDashboardPath
	}
	return r
}

// Decide maps a user and the originally requested path to a navigation outcome.
// It returns nil when there is no user. First login is checked before the
// must-change flag, and a forced password change always wins over requestedPath.
func (r Routes) Decide(user *auth.User, requestedPath string, source Source) *Outcome {
	if user == nil {
		return nil
	}
	r = r.WithDefaults()

	switch {
	case user.IsFirstLogin:
		out := &Outcome{Destination: r.PasswordChange}
		if source == SourceSubmit {
			out.Message = fmt.Sprintf(firstLoginMessage, user.Name)
		}
		return out
	case user.MustChangePassword:
		out := &Outcome{Destination: r.PasswordChange}
		if source == SourceSubmit {
			out.Message = mustChangeMessage
			out.Delay = MustChangeDelay
		}
		return out
	}

	if requestedPath != "" {
		return &Outcome{Destination: requestedPath}
	}
	return &Outcome{Destination: r.Dashboard}
}
