package constants

import "time"

// Request defaults, taken from the call sites the probes replace.
const (
	DefaultBackendTimeout  = 10 * time.Second
	DefaultProviderTimeout = 15 * time.Second
	DefaultProviderBaseURL = "https://onesignal.com"
	DefaultBackendBaseURL  = "http://localhost:5000"
)

// Managed service defaults
const (
	DefaultStartupTimeout = 30 * time.Second
	DefaultSettleDelay    = 2 * time.Second
	DefaultStopTimeout    = 5 * time.Second
	DefaultCommandTimeout = 10 * time.Minute
)

// DefaultReadyPatterns are the lines a Node backend prints once it listens.
var DefaultReadyPatterns = []string{"listening on port", "Server running on port"}

// History store defaults
const (
	DefaultSQLitePath      = "pushprobe.db"
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"
	DefaultRunsTable       = "probe_runs"
	DefaultOutcomesTable   = "probe_outcomes"
)

// Step names shared by checks, suites and the remediation table.
const (
	StepServerStart          = "serverStart"
	StepBackendHealth        = "backendHealth"
	StepHealthCheck          = "healthCheck"
	StepAdminBookings        = "adminBookings"
	StepUserBookings         = "userBookings"
	StepNotificationSystem   = "notificationSystem"
	StepNotificationEndpoint = "notificationEndpoint"
	StepBookingSimulation    = "bookingSimulation"
	StepBookingEndpoint      = "bookingEndpoint"
	StepWebsocket            = "websocket"
	StepProviderDirect       = "providerDirect"
	StepProviderAppInfo      = "providerAppInfo"
	StepRegistration         = "registration"
	StepRegistrationRejected = "registrationRejected"
	StepFlutterTests         = "flutterTests"
)
