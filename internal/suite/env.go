package suite

import (
	"fmt"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/checks"
	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/supervisor"
)

// Notifications are the bodies sent by the backend notification steps.
type Notifications struct {
	System   checks.Notification `yaml:"system" mapstructure:"system"`
	Booking  checks.Notification `yaml:"booking" mapstructure:"booking"`
	Endpoint checks.Notification `yaml:"endpoint" mapstructure:"endpoint"`
}

// DefaultNotifications mirror the messages the probe scripts sent.
var DefaultNotifications = Notifications{
	System: checks.Notification{
		Title:   "Final Integration Test",
		Message: "Complete system verification - notification system test",
		Type:    "final_integration_test",
	},
	Booking: checks.Notification{
		Title:   "New Booking Alert",
		Message: "New AC Repair booking from a test customer. This simulates what admins receive for new bookings.",
		Type:    "booking_creation_simulation",
	},
	Endpoint: checks.Notification{
		Title:   "Local Backend Test",
		Message: "Testing the notification endpoint",
		Type:    "local_backend_test",
	},
}

// DefaultProviderMessage is sent by providerDirect when none is configured.
var DefaultProviderMessage = checks.ProviderMessage{
	Heading:  "System Verification",
	Contents: "All systems are working. The notification pipeline is ready.",
	Type:     "system_verification",
	Data:     map[string]string{"status": "production_ready"},
}

// Env holds everything steps are built from. It is assembled once from
// configuration and not modified afterwards.
type Env struct {
	Backend  *httpc.Client
	Local    *httpc.Client
	Provider *httpc.Client

	BackendAuth auth.Method
	AdminAuth   auth.Method
	ProviderKey auth.Method
	AppID       string

	Phones              []string
	AllowEmptyBookings  bool
	Notifications       Notifications
	ProviderMessage     checks.ProviderMessage
	Registration        checks.Registration
	InvalidRegistration checks.Registration
	FlutterDir          string

	// Service is started for managed suites.
	Service *supervisor.Spec
	// Extra are configured checks and commands, addressable by name.
	Extra []step.Step
}

func (e Env) backendFor(target string) (*httpc.Client, error) {
	if target == TargetLocal {
		if e.Local == nil {
			return nil, fmt.Errorf("no local backend client configured")
		}
		return e.Local, nil
	}
	if e.Backend == nil {
		return nil, fmt.Errorf("no backend client configured")
	}
	return e.Backend, nil
}

func (e Env) provider() (*httpc.Client, error) {
	if e.Provider == nil {
		return nil, fmt.Errorf("no provider client configured")
	}
	if e.AppID == "" {
		return nil, fmt.Errorf("provider app id is not configured")
	}
	return e.Provider, nil
}

// step resolves one step name against the built-ins, then Extra.
func (e Env) step(name, target string) (step.Step, error) {
	for _, s := range e.Extra {
		if s.Name() == name {
			return s, nil
		}
	}

	switch name {
	case constants.StepProviderDirect:
		p, err := e.provider()
		if err != nil {
			return nil, err
		}
		msg := e.ProviderMessage
		if msg.Heading == "" && msg.Contents == "" {
			msg = DefaultProviderMessage
		}
		return checks.ProviderDirect(p, e.ProviderKey, e.AppID, msg), nil
	case constants.StepProviderAppInfo:
		p, err := e.provider()
		if err != nil {
			return nil, err
		}
		return checks.ProviderAppInfo(p, e.ProviderKey, e.AppID), nil
	case constants.StepFlutterTests:
		return checks.FlutterTests(e.FlutterDir), nil
	}

	c, err := e.backendFor(target)
	if err != nil {
		return nil, err
	}
	notes := e.notifications()
	switch name {
	case constants.StepBackendHealth, constants.StepHealthCheck:
		return checks.Health(name, c, ""), nil
	case constants.StepAdminBookings:
		return checks.AdminBookings(c, e.AdminAuth), nil
	case constants.StepUserBookings:
		if len(e.Phones) == 0 {
			return nil, fmt.Errorf("%s needs at least one phone", name)
		}
		return &checks.UserBookings{
			Client:     c,
			Auth:       e.BackendAuth,
			Phones:     e.Phones,
			AllowEmpty: e.AllowEmptyBookings,
		}, nil
	case constants.StepNotificationSystem:
		return checks.TestNotification(name, c, e.BackendAuth, notes.System), nil
	case constants.StepBookingSimulation:
		return checks.TestNotification(name, c, e.BackendAuth, notes.Booking), nil
	case constants.StepNotificationEndpoint:
		return checks.TestNotification(name, c, e.BackendAuth, notes.Endpoint), nil
	case constants.StepBookingEndpoint:
		return checks.BookingEndpoint(c, e.BackendAuth), nil
	case constants.StepWebsocket:
		return checks.Websocket(c), nil
	case constants.StepRegistration:
		r := e.Registration
		if r == (checks.Registration{}) {
			r = checks.DefaultRegistration
		}
		return checks.RegistrationAccepted(c, r), nil
	case constants.StepRegistrationRejected:
		r := e.InvalidRegistration
		if r == (checks.Registration{}) {
			r = checks.InvalidRegistration
		}
		return checks.RegistrationRejected(c, r), nil
	}
	return nil, fmt.Errorf("unknown step %q", name)
}

func (e Env) notifications() Notifications {
	n := e.Notifications
	if n.System.Title == "" {
		n.System = DefaultNotifications.System
	}
	if n.Booking.Title == "" {
		n.Booking = DefaultNotifications.Booking
	}
	if n.Endpoint.Title == "" {
		n.Endpoint = DefaultNotifications.Endpoint
	}
	return n
}
