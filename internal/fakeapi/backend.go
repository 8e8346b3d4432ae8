package fakeapi

import (
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/loykin/pushprobe/internal/auth"
)

// Booking is a stored booking.
type Booking struct {
	ID      string `json:"_id"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Status  string `json:"status"`
}

// SentNotification records a dispatched test notification.
type SentNotification struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Type    string    `json:"type"`
	SentAt  time.Time `json:"sentAt"`
}

// BackendOptions configures the fake backend.
type BackendOptions struct {
	Bookings []Booking
	// JWTSecret enables GET /api/bookings for bearer tokens signed with it.
	// Without it the route always answers 401.
	JWTSecret string
	// AdminRole, when set, is required in the token's role claim for
	// /api/admin/bookings. Unset leaves the admin route open.
	AdminRole string
	PageSize  int
}

// Backend is an in-memory booking backend.
type Backend struct {
	opts    BackendOptions
	started time.Time
	engine  *gin.Engine

	mu    sync.Mutex
	sent  []SentNotification
	users map[string]struct{}
}

// NewBackend builds the backend with its routes.
func NewBackend(opts BackendOptions) *Backend {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	b := &Backend{
		opts:    opts,
		started: time.Now(),
		users:   map[string]struct{}{},
	}
	e := newEngine("fake-backend")
	e.GET("/health", b.health)
	api := e.Group("/api")
	api.GET("/health", b.health)
	api.GET("/admin/bookings", b.requireRole(opts.AdminRole), b.adminBookings)
	api.GET("/bookings/user/:phone", b.userBookings)
	api.GET("/bookings", b.requireToken, b.allBookings)
	api.POST("/notifications/test", b.testNotification)
	api.GET("/websocket/health", b.websocketHealth)
	api.POST("/auth/register", b.register)
	b.engine = e
	return b
}

// Handler returns the HTTP handler.
func (b *Backend) Handler() http.Handler { return b.engine }

// Sent returns the notifications dispatched so far.
func (b *Backend) Sent() []SentNotification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SentNotification(nil), b.sent...)
}

func (b *Backend) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  "OK",
		"uptime":  int(time.Since(b.started).Seconds()),
	})
}

func (b *Backend) adminBookings(c *gin.Context) {
	pages := (len(b.opts.Bookings) + b.opts.PageSize - 1) / b.opts.PageSize
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"bookings":   b.bookings(""),
		"totalPages": pages,
	})
}

func (b *Backend) userBookings(c *gin.Context) {
	found := b.bookings(c.Param("phone"))
	if len(found) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No bookings found for this phone number"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookings": found})
}

func (b *Backend) allBookings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "bookings": b.bookings("")})
}

func (b *Backend) bookings(phone string) []Booking {
	out := make([]Booking, 0, len(b.opts.Bookings))
	for _, bk := range b.opts.Bookings {
		if phone == "" || bk.Phone == phone {
			out = append(out, bk)
		}
	}
	return out
}

type notificationRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (b *Backend) testNotification(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "title and message are required"})
		return
	}
	n := SentNotification{ID: newID(), Title: req.Title, Message: req.Message, Type: req.Type, SentAt: time.Now()}
	b.mu.Lock()
	b.sent = append(b.sent, n)
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Test notification sent",
		"notification": gin.H{"id": n.ID},
	})
}

func (b *Backend) websocketHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "OK", "connectedClients": 0})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^[0-9]{10}$`)
)

func (b *Backend) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid JSON"})
		return
	}
	var errs []gin.H
	add := func(field, msg string) { errs = append(errs, gin.H{"field": field, "message": msg}) }
	if strings.TrimSpace(req.Name) == "" {
		add("name", "Name is required")
	}
	if !emailRe.MatchString(req.Email) {
		add("email", "Please provide a valid email")
	}
	if len(req.Password) < 6 {
		add("password", "Password must be at least 6 characters")
	}
	if !phoneRe.MatchString(req.Phone) {
		add("phone", "Phone number must be 10 digits")
	}
	if strings.TrimSpace(req.Address) == "" {
		add("address", "Address is required")
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Validation failed", "errors": errs})
		return
	}

	email := strings.ToLower(req.Email)
	b.mu.Lock()
	_, exists := b.users[email]
	b.users[email] = struct{}{}
	b.mu.Unlock()
	if exists {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "User already exists"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "User registered successfully"})
}

// verify checks the bearer token and aborts with 401 when it is not valid.
func (b *Backend) verify(c *gin.Context) (jwt.MapClaims, bool) {
	claims, err := auth.Verify([]byte(b.opts.JWTSecret), c.GetHeader("Authorization"), auth.VerifyOptions{ClockSkew: 2 * time.Second})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Access denied. No valid token provided."})
		return nil, false
	}
	return claims, true
}

func (b *Backend) requireToken(c *gin.Context) {
	if _, ok := b.verify(c); ok {
		c.Next()
	}
}

func (b *Backend) requireRole(role string) gin.HandlerFunc {
	if role == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		claims, ok := b.verify(c)
		if !ok {
			return
		}
		if got, _ := claims["role"].(string); got != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
			return
		}
		c.Next()
	}
}
