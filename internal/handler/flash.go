package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	flashSuccess = "success"
	flashError   = "error"
	flashWarning = "warning"
)

// FlashStore carries one-shot back-office messages across a redirect.
type FlashStore struct {
	store sessions.Store
	name  string
}

// NewFlashStore builds a signed cookie store for flash messages.
func NewFlashStore(secret string, secure bool) *FlashStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/admin",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
	}
	return &FlashStore{store: store, name: "admin_flash"}
}

func (f *FlashStore) add(c *gin.Context, kind, message string) {
	if f == nil {
		return
	}
	session, _ := f.store.Get(c.Request, f.name)
	session.AddFlash(message, kind)
	_ = session.Save(c.Request, c.Writer)
}

// Flashes holds the messages shown once on the next page.
type Flashes struct {
	Success []string
	Warning []string
	Error   []string
}

func (f *FlashStore) pop(c *gin.Context) Flashes {
	var out Flashes
	if f == nil {
		return out
	}
	session, err := f.store.Get(c.Request, f.name)
	if err != nil {
		return out
	}
	for _, v := range session.Flashes(flashSuccess) {
		if s, ok := v.(string); ok {
			out.Success = append(out.Success, s)
		}
	}
	for _, v := range session.Flashes(flashWarning) {
		if s, ok := v.(string); ok {
			out.Warning = append(out.Warning, s)
		}
	}
	for _, v := range session.Flashes(flashError) {
		if s, ok := v.(string); ok {
			out.Error = append(out.Error, s)
		}
	}
	if len(out.Success)+len(out.Warning)+len(out.Error) > 0 {
		_ = session.Save(c.Request, c.Writer)
	}
	return out
}
