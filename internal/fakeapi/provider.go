package fakeapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ProviderOptions configures the fake push provider.
type ProviderOptions struct {
	AppID       string
	APIKey      string
	AppName     string
	Players     int
	Messageable int
}

// ProviderMessage is a notification accepted by the fake provider.
type ProviderMessage struct {
	ID       string            `json:"id"`
	AppID    string            `json:"app_id"`
	Segments []string          `json:"included_segments"`
	Headings map[string]string `json:"headings"`
	Contents map[string]string `json:"contents"`
	Data     map[string]any    `json:"data"`
}

// Provider is an in-memory push provider.
type Provider struct {
	opts    ProviderOptions
	engine  *gin.Engine
	updated time.Time

	mu       sync.Mutex
	messages []ProviderMessage
}

// NewProvider builds the provider with its routes.
func NewProvider(opts ProviderOptions) *Provider {
	if opts.AppName == "" {
		opts.AppName = "Service Booking App"
	}
	p := &Provider{opts: opts, updated: time.Now().UTC()}
	e := newEngine("fake-provider")
	v1 := e.Group("/api/v1", p.checkKey)
	v1.POST("/notifications", p.createNotification)
	v1.GET("/apps/:id", p.appInfo)
	p.engine = e
	return p
}

// Handler returns the HTTP handler.
func (p *Provider) Handler() http.Handler { return p.engine }

// Messages returns the accepted notifications.
func (p *Provider) Messages() []ProviderMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProviderMessage(nil), p.messages...)
}

func (p *Provider) checkKey(c *gin.Context) {
	if c.GetHeader("Authorization") != "Basic "+p.opts.APIKey {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": []string{"invalid key"}})
		return
	}
	c.Next()
}

func (p *Provider) createNotification(c *gin.Context) {
	var msg ProviderMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{"invalid JSON body"}})
		return
	}
	if msg.AppID != p.opts.AppID {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{"app_id not found. You may be missing a Content-Type header."}})
		return
	}
	if msg.Contents["en"] == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{"Notification contents must not be null for any languages."}})
		return
	}
	msg.ID = newID()
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"id": msg.ID, "recipients": p.opts.Messageable})
}

func (p *Provider) appInfo(c *gin.Context) {
	if c.Param("id") != p.opts.AppID {
		c.JSON(http.StatusNotFound, gin.H{"errors": []string{"Couldn't find app with id = " + c.Param("id")}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                  p.opts.AppID,
		"name":                p.opts.AppName,
		"players":             p.opts.Players,
		"messageable_players": p.opts.Messageable,
		"updated_at":          p.updated.Format(time.RFC3339),
	})
}
