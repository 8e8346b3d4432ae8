package checks

import (
	"context"
	"net/url"
	"time"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/step"
)

// ProviderMessage is the content of a direct provider notification.
type ProviderMessage struct {
	Heading  string            `mapstructure:"heading" yaml:"heading"`
	Contents string            `mapstructure:"contents" yaml:"contents"`
	Type     string            `mapstructure:"type" yaml:"type"`
	Segments []string          `mapstructure:"segments" yaml:"segments"`
	Data     map[string]string `mapstructure:"data" yaml:"data"`
}

// payload builds the provider request body. data always carries type and an
// RFC 3339 timestamp taken from now.
func (m ProviderMessage) payload(appID string, now time.Time) map[string]any {
	segments := m.Segments
	if len(segments) == 0 {
		segments = []string{"All"}
	}
	data := map[string]any{
		"type":      m.Type,
		"timestamp": now.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range m.Data {
		if _, reserved := data[k]; !reserved {
			data[k] = v
		}
	}
	return map[string]any{
		"app_id":            appID,
		"included_segments": segments,
		"headings":          map[string]string{"en": m.Heading},
		"contents":          map[string]string{"en": m.Contents},
		"data":              data,
	}
}

// ProviderDirect sends a notification straight to the provider, bypassing
// the backend. It passes when the response carries an id; otherwise the
// provider's errors array is the detail.
func ProviderDirect(c *httpc.Client, key auth.Method, appID string, msg ProviderMessage) step.Step {
	return &providerDirect{
		HTTPCheck: HTTPCheck{
			StepName: constants.StepProviderDirect,
			Client:   c,
			Auth:     key,
			Request:  post("/api/v1/notifications", nil),
			Evaluate: evaluateProviderSend,
		},
		appID: appID,
		msg:   msg,
		now:   time.Now,
	}
}

type providerDirect struct {
	HTTPCheck
	appID string
	msg   ProviderMessage
	now   func() time.Time
}

// Execute stamps the payload at send time.
func (p *providerDirect) Execute(ctx context.Context) (step.Outcome, error) {
	check := p.HTTPCheck
	check.Request.Body = p.msg.payload(p.appID, p.now())
	check.Request.Headers = map[string]string{"Content-Type": "application/json; charset=utf-8"}
	return check.Execute(ctx)
}

func evaluateProviderSend(resp *httpc.Response) (bool, any) {
	id := resp.JSON("id")
	if id.Exists() && id.String() != "" {
		return true, step.Details{"id": id.String(), "recipients": resp.JSON("recipients").Int()}
	}
	if errs := resp.JSON("errors"); errs.Exists() {
		return false, errs.Value()
	}
	return false, mismatch(resp)
}

// ProviderAppInfo fetches the provider's app metadata and reports subscriber
// counts.
func ProviderAppInfo(c *httpc.Client, key auth.Method, appID string) step.Step {
	return &HTTPCheck{
		StepName: constants.StepProviderAppInfo,
		Client:   c,
		Auth:     key,
		Request:  get("/api/v1/apps/" + url.PathEscape(appID)),
		Evaluate: func(resp *httpc.Response) (bool, any) {
			if !resp.JSON("id").Exists() {
				if errs := resp.JSON("errors"); errs.Exists() {
					return false, errs.Value()
				}
				return false, mismatch(resp)
			}
			return true, step.Details{
				"name":                resp.JSON("name").String(),
				"players":             resp.JSON("players").Int(),
				"messageable_players": resp.JSON("messageable_players").Int(),
				"updated_at":          resp.JSON("updated_at").String(),
			}
		},
	}
}
