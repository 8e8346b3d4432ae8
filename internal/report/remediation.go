package report

import (
	"strings"

	"github.com/loykin/pushprobe/internal/constants"
)

var remediation = map[string]string{
	constants.StepServerStart:          "Service did not print its ready line. Check the command, working directory and that the port is free",
	constants.StepBackendHealth:        "Backend is unreachable or unhealthy. Check that it is running and the base URL is correct",
	constants.StepHealthCheck:          "Backend is unreachable or unhealthy. Check that it is running and the base URL is correct",
	constants.StepAdminBookings:        "Admin bookings failed. Check database connectivity and admin credentials",
	constants.StepUserBookings:         "No bookings found for the configured phones. Create a booking or set allow_empty",
	constants.StepNotificationSystem:   "Notification endpoint failed. Check the backend's provider app id and REST key",
	constants.StepBookingSimulation:    "Booking notification failed. Check the backend's provider configuration",
	constants.StepNotificationEndpoint: "Notification endpoint failed. Check the backend's provider app id and REST key",
	constants.StepBookingEndpoint:      "Bookings endpoint missing or rejecting credentials. Check routes and auth settings",
	constants.StepWebsocket:            "WebSocket service is not healthy. Check the socket server started with the backend",
	constants.StepProviderDirect:       "Provider rejected the notification. Check the app id and REST API key",
	constants.StepProviderAppInfo:      "Provider app lookup failed. Check the app id and REST API key",
	constants.StepRegistration:         "Registration of a valid user failed. Check the auth routes and database",
	constants.StepRegistrationRejected: "Invalid registration was not rejected. Check request validation",
	constants.StepFlutterTests:         "Flutter tests failed. Run them with --verbose and check device setup",
}

const defaultHint = "Check the step detail above"

// Hint returns the remediation text for a failed step.
func Hint(name string) string {
	if h, ok := remediation[name]; ok {
		return h
	}
	if strings.HasPrefix(name, "command:") {
		return "External command failed. Run it by hand to see the full output"
	}
	return defaultHint
}
