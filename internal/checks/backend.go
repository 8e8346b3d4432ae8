package checks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/tidwall/gjson"
)

// Health checks GET path for 200 with success: true. Most backends serve it
// at /api/health; name is backendHealth or healthCheck depending on suite.
func Health(name string, c *httpc.Client, path string) step.Step {
	if path == "" {
		path = "/api/health"
	}
	return &HTTPCheck{
		StepName: name,
		Client:   c,
		Request:  get(path),
		Evaluate: func(resp *httpc.Response) (bool, any) {
			if resp.StatusCode != http.StatusOK || !successFlag(resp) {
				return false, mismatch(resp)
			}
			d := step.Details{"status": resp.JSON("status").String()}
			if up := resp.JSON("uptime"); up.Exists() {
				d["uptime"] = up.Value()
			}
			return true, d
		},
	}
}

// AdminBookings checks GET /api/admin/bookings and reports the booking count
// broken down by status.
func AdminBookings(c *httpc.Client, m auth.Method) step.Step {
	return &HTTPCheck{
		StepName: constants.StepAdminBookings,
		Client:   c,
		Auth:     m,
		Request:  get("/api/admin/bookings"),
		Evaluate: func(resp *httpc.Response) (bool, any) {
			if resp.StatusCode != http.StatusOK || !successFlag(resp) {
				return false, mismatch(resp)
			}
			bookings := resp.JSON("bookings").Array()
			byStatus := map[string]int{}
			for _, b := range bookings {
				st := b.Get("status").String()
				if st == "" {
					st = "unknown"
				}
				byStatus[st]++
			}
			d := step.Details{"count": len(bookings), "byStatus": byStatus}
			if tp := resp.JSON("totalPages"); tp.Exists() {
				d["totalPages"] = tp.Int()
			}
			return true, d
		},
	}
}

// UserBookings looks up bookings for each phone in turn. A 404 for a phone
// means "no bookings found" and is never a fault. The step passes when at
// least one booking was found, or when allowEmpty is set and every lookup
// got a definite answer.
type UserBookings struct {
	Client     *httpc.Client
	Auth       auth.Method
	Phones     []string
	AllowEmpty bool
}

// Name returns userBookings.
func (u *UserBookings) Name() string { return constants.StepUserBookings }

// Execute queries every phone and sums the bookings.
func (u *UserBookings) Execute(ctx context.Context) (step.Outcome, error) {
	if len(u.Phones) == 0 {
		return step.Outcome{}, fmt.Errorf("userBookings: no phones configured")
	}
	total := 0
	answered := 0
	perPhone := make(map[string]any, len(u.Phones))
	for _, phone := range u.Phones {
		check := &HTTPCheck{
			StepName: u.Name(),
			Client:   u.Client,
			Auth:     u.Auth,
			Request:  get("/api/bookings/user/" + url.PathEscape(phone)),
			Evaluate: evaluateUserBookings,
		}
		o, err := check.Execute(ctx)
		if err != nil {
			return step.Outcome{}, err
		}
		if n, ok := o.Detail.(int); ok {
			total += n
			answered++
			if n == 0 {
				perPhone[phone] = "no bookings found"
			} else {
				perPhone[phone] = n
			}
			continue
		}
		perPhone[phone] = o.Detail
	}

	passed := total > 0 || (u.AllowEmpty && answered == len(u.Phones))
	if total == 0 && len(u.Phones) == 1 {
		if s, ok := perPhone[u.Phones[0]].(string); ok {
			return step.Result(u.Name(), passed, s), nil
		}
	}
	return step.Result(u.Name(), passed, step.Details{"total": total, "phones": perPhone}), nil
}

// evaluateUserBookings yields the booking count as detail when the backend
// gave a definite answer (200 with success, or 404).
func evaluateUserBookings(resp *httpc.Response) (bool, any) {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return true, 0
	case resp.StatusCode == http.StatusOK && successFlag(resp):
		return true, len(resp.JSON("bookings").Array())
	default:
		return false, mismatch(resp)
	}
}

// Notification is the body of POST /api/notifications/test.
type Notification struct {
	Title   string `json:"title" mapstructure:"title" yaml:"title"`
	Message string `json:"message" mapstructure:"message" yaml:"message"`
	Type    string `json:"type" mapstructure:"type" yaml:"type"`
}

// TestNotification asks the backend to dispatch a notification through the
// provider. Used for notificationSystem, bookingSimulation and
// notificationEndpoint.
func TestNotification(name string, c *httpc.Client, m auth.Method, n Notification) step.Step {
	return &HTTPCheck{
		StepName: name,
		Client:   c,
		Auth:     m,
		Request:  post("/api/notifications/test", n),
		Evaluate: func(resp *httpc.Response) (bool, any) {
			if resp.StatusCode != http.StatusOK || !successFlag(resp) {
				return false, mismatch(resp)
			}
			d := step.Details{"notificationId": "N/A"}
			if id := resp.JSON("notification.id"); id.Exists() && id.String() != "" {
				d["notificationId"] = id.String()
			}
			if msg := resp.JSON("message"); msg.Exists() {
				d["message"] = msg.String()
			}
			return true, d
		},
	}
}

// BookingEndpoint checks that GET /api/bookings exists. Without credentials
// a 401 proves the route is mounted and protected; with credentials only a
// 200 passes.
func BookingEndpoint(c *httpc.Client, m auth.Method) step.Step {
	authenticated := m != nil
	return &HTTPCheck{
		StepName: constants.StepBookingEndpoint,
		Client:   c,
		Auth:     m,
		Request:  get("/api/bookings"),
		Evaluate: func(resp *httpc.Response) (bool, any) {
			switch {
			case !authenticated && resp.StatusCode == http.StatusUnauthorized:
				return true, "endpoint exists (requires authentication)"
			case resp.StatusCode == http.StatusOK:
				return true, step.Details{"count": len(resp.JSON("bookings").Array())}
			default:
				return false, mismatch(resp)
			}
		},
	}
}

// Websocket checks GET /api/websocket/health returns 200.
func Websocket(c *httpc.Client) step.Step {
	return &HTTPCheck{
		StepName: constants.StepWebsocket,
		Client:   c,
		Request:  get("/api/websocket/health"),
		Evaluate: func(resp *httpc.Response) (bool, any) {
			if resp.StatusCode != http.StatusOK {
				return false, mismatch(resp)
			}
			if cc := resp.JSON("connectedClients"); cc.Exists() {
				return true, step.Details{"connectedClients": cc.Int()}
			}
			return true, "websocket service healthy"
		},
	}
}

// Registration is the body of POST /api/auth/register.
type Registration struct {
	Name     string `json:"name" mapstructure:"name" yaml:"name"`
	Email    string `json:"email" mapstructure:"email" yaml:"email"`
	Password string `json:"password" mapstructure:"password" yaml:"password"`
	Phone    string `json:"phone" mapstructure:"phone" yaml:"phone"`
	Address  string `json:"address" mapstructure:"address" yaml:"address"`
}

// DefaultRegistration is a valid user used by the validation suite.
var DefaultRegistration = Registration{
	Name:     "Test User",
	Email:    "testuser@example.com",
	Password: "testpass123",
	Phone:    "1234567890",
	Address:  "123 Test Street",
}

// InvalidRegistration fails every field rule.
var InvalidRegistration = Registration{
	Name:     "",
	Email:    "invalid-email",
	Password: "123",
	Phone:    "123",
	Address:  "",
}

// RegistrationAccepted passes on 201 (created) or 409 (already registered).
func RegistrationAccepted(c *httpc.Client, r Registration) step.Step {
	return &HTTPCheck{
		StepName: constants.StepRegistration,
		Client:   c,
		Request:  post("/api/auth/register", r),
		Evaluate: func(resp *httpc.Response) (bool, any) {
			switch resp.StatusCode {
			case http.StatusCreated:
				return true, "user registered"
			case http.StatusConflict:
				return true, "user already exists"
			default:
				return false, mismatch(resp)
			}
		},
	}
}

// RegistrationRejected passes when invalid data is refused with 400 and
// "Validation failed".
func RegistrationRejected(c *httpc.Client, r Registration) step.Step {
	return &HTTPCheck{
		StepName: constants.StepRegistrationRejected,
		Client:   c,
		Request:  post("/api/auth/register", r),
		Evaluate: func(resp *httpc.Response) (bool, any) {
			if resp.StatusCode != http.StatusBadRequest || resp.JSON("message").String() != "Validation failed" {
				return false, mismatch(resp)
			}
			return true, step.Details{"errors": len(resp.JSON("errors").Array()), "fields": errorFields(resp.JSON("errors"))}
		},
	}
}

func errorFields(errs gjson.Result) []string {
	seen := map[string]struct{}{}
	for _, e := range errs.Array() {
		f := e.Get("field").String()
		if f == "" {
			f = e.Get("path").String()
		}
		if f != "" {
			seen[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
