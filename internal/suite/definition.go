package suite

import (
	"fmt"
	"strings"

	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/util"
)

// Targets a suite can point its backend steps at.
const (
	TargetBackend = "backend"
	TargetLocal   = "local"
)

// Definition names an ordered list of steps. Steps refer to built-in step
// names or to configured check names.
type Definition struct {
	Name        string   `yaml:"name" mapstructure:"name"`
	Description string   `yaml:"description" mapstructure:"description"`
	Target      string   `yaml:"target" mapstructure:"target"`
	Managed     bool     `yaml:"managed" mapstructure:"managed"`
	Steps       []string `yaml:"steps" mapstructure:"steps"`
}

func (d Definition) target() string {
	return util.TrimWithDefault(util.TrimAndLower(d.Target), TargetBackend)
}

// Validate checks the definition shape; step names are resolved at Build.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("suite: name is required")
	}
	switch d.target() {
	case TargetBackend, TargetLocal:
	default:
		return fmt.Errorf("suite %s: invalid target %q (must be backend or local)", d.Name, d.Target)
	}
	if d.Managed && d.target() != TargetLocal {
		return fmt.Errorf("suite %s: managed suites must target local", d.Name)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("suite %s: no steps", d.Name)
	}
	seen := make(map[string]struct{}, len(d.Steps))
	for _, s := range d.Steps {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("suite %s: empty step name", d.Name)
		}
		if s == constants.StepServerStart {
			return fmt.Errorf("suite %s: %s is recorded automatically for managed suites", d.Name, s)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("suite %s: duplicate step %s", d.Name, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Builtins reproduce the standalone probe scripts.
var Builtins = []Definition{
	{
		Name:        "final",
		Description: "End-to-end check of the deployed backend and the provider",
		Steps: []string{
			constants.StepBackendHealth,
			constants.StepAdminBookings,
			constants.StepUserBookings,
			constants.StepNotificationSystem,
			constants.StepBookingSimulation,
			constants.StepProviderDirect,
		},
	},
	{
		Name:        "local",
		Description: "Start the backend locally, then probe it and the provider",
		Target:      TargetLocal,
		Managed:     true,
		Steps: []string{
			constants.StepHealthCheck,
			constants.StepNotificationEndpoint,
			constants.StepProviderDirect,
		},
	},
	{
		Name:        "existing-local",
		Description: "Probe a backend already running on this machine",
		Target:      TargetLocal,
		Steps: []string{
			constants.StepHealthCheck,
			constants.StepNotificationEndpoint,
			constants.StepProviderDirect,
		},
	},
	{
		Name:        "notification",
		Description: "Provider send, backend dispatch and the protected bookings route",
		Steps: []string{
			constants.StepProviderDirect,
			constants.StepNotificationSystem,
			constants.StepBookingEndpoint,
			constants.StepAdminBookings,
		},
	},
	{
		Name:        "provider",
		Description: "Provider app metadata and a direct send",
		Steps: []string{
			constants.StepProviderAppInfo,
			constants.StepProviderDirect,
		},
	},
	{
		Name:        "comprehensive",
		Description: "Backend health, bookings, notifications and websocket service",
		Steps: []string{
			constants.StepBackendHealth,
			constants.StepAdminBookings,
			constants.StepUserBookings,
			constants.StepNotificationSystem,
			constants.StepWebsocket,
		},
	},
	{
		Name:        "deployment",
		Description: "Endpoints added by the latest deployment",
		Steps: []string{
			constants.StepUserBookings,
			constants.StepNotificationEndpoint,
			constants.StepAdminBookings,
		},
	},
	{
		Name:        "validation",
		Description: "Registration accepts valid users and rejects invalid ones",
		Steps: []string{
			constants.StepRegistration,
			constants.StepRegistrationRejected,
		},
	},
	{
		Name:        "flutter",
		Description: "Mobile integration tests followed by backend and provider sends",
		Steps: []string{
			constants.StepFlutterTests,
			constants.StepNotificationEndpoint,
			constants.StepBookingSimulation,
			constants.StepProviderDirect,
		},
	},
}
