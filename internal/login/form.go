// Package login implements the credential form and the post-login landing flow.
package login

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edunirix/portal/internal/auth"
	"github.com/edunirix/portal/internal/authclient"
	"github.com/edunirix/portal/internal/navigation"
	"github.com/edunirix/portal/internal/session"
)

// Reserved error keys. Field errors use the field name.
const (
	ErrGeneral = "general"
	ErrInfo    = "info"

	FieldEmail    = "email"
	FieldPassword = "password"
)

const (
	msgMissingFields = "Please fill in all fields"
	msgLoginFailed   = "Login failed. Please try again."
	msgNetwork       = "Network error. Please check your connection and try again."
)

// Authenticator exchanges credentials for a session token.
type Authenticator interface {
	Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error)
}

// Result classifies how a submit ended.
type Result int

const (
	ResultSuccess Result = iota
	ResultInvalid
	ResultRejected
	ResultUnavailable
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInvalid:
		return "invalid"
	case ResultRejected:
		return "rejected"
	case ResultUnavailable:
		return "unavailable"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Form is the local state of the credential form.
type Form struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
	Loading  bool   `validate:"-"`
	Errors   map[string]string
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{Errors: make(map[string]string)}
}

// SetField updates a field and clears its error.
func (f *Form) SetField(name, value string) {
	switch name {
	case FieldEmail:
		f.Email = value
	case FieldPassword:
		f.Password = value
	default:
		return
	}
	delete(f.Errors, name)
}

// Error returns the message stored under key.
func (f *Form) Error(key string) string {
	return f.Errors[key]
}

// Info returns the transient informational message.
func (f *Form) Info() string {
	return f.Errors[ErrInfo]
}

func (f *Form) reset() {
	f.Errors = make(map[string]string)
}

// View wires a Form to the authentication client, the session Store and the
// navigator. One View serves one submit.
type View struct {
	Form *Form

	client    Authenticator
	store     *session.Store
	routes    navigation.Routes
	requested string
	navigator Navigator
	validate  *validator.Validate
}

// ViewParams groups View dependencies.
type ViewParams struct {
	Client        Authenticator
	Store         *session.Store
	Routes        navigation.Routes
	RequestedPath string
	Navigator     Navigator
	Validate      *validator.Validate
}

// NewView constructs a View around form.
func NewView(form *Form, p ViewParams) *View {
	if form == nil {
		form = NewForm()
	}
	if p.Validate == nil {
		p.Validate = validator.New()
	}
	return &View{
		Form:      form,
		client:    p.Client,
		store:     p.Store,
		routes:    p.Routes,
		requested: p.RequestedPath,
		navigator: p.Navigator,
		validate:  p.Validate,
	}
}

// Submit validates the form, authenticates and schedules the landing
// navigation. The returned error is the underlying cause for logging; the
// user facing text is already in Form.Errors.
func (v *View) Submit(ctx context.Context) (Result, error) {
	f := v.Form
	f.Email = strings.TrimSpace(f.Email)
	if err := v.validate.Struct(f); err != nil {
		f.Errors = map[string]string{ErrGeneral: msgMissingFields}
		return ResultInvalid, nil
	}

	f.Loading = true
	defer func() { f.Loading = false }()
	f.reset()

	res, err := v.client.Login(ctx, auth.Credentials{Email: f.Email, Password: f.Password})
	if err != nil {
		if authErr, ok := authclient.IsAuthentication(err); ok {
			msg := authErr.Message
			if strings.TrimSpace(msg) == "" {
				msg = msgLoginFailed
			}
			f.Errors[ErrGeneral] = msg
			return ResultRejected, err
		}
		f.Errors[ErrGeneral] = msgNetwork
		return ResultUnavailable, err
	}

	if err := v.store.Login(res.User, res.Token); err != nil {
		f.Errors[ErrGeneral] = msgLoginFailed
		return ResultFailed, err
	}

	out := v.routes.Decide(&res.User, v.requested, navigation.SourceSubmit)
	if out == nil {
		return ResultSuccess, nil
	}
	if out.HasMessage() {
		f.Errors[ErrInfo] = out.Message
	}
	if v.navigator != nil {
		v.navigator.Navigate(*out)
	}
	return ResultSuccess, nil
}
