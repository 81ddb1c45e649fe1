package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/middleware"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*models.LoginResult, error)
	Logout(ctx context.Context, token string) error
	ResolveSession(ctx context.Context, token string) (*models.Session, error)
	CurrentUser(ctx context.Context, session *models.Session) (*models.UserInfo, error)
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service       authService
	cookie        CookieConfig
	frontendURL   string
	adminLoginURL string
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookie CookieConfig, frontendURL, adminLoginURL string) *AuthHandler {
	return &AuthHandler{service: svc, cookie: cookie, frontendURL: frontendURL, adminLoginURL: adminLoginURL}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by username and password; sets the session cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 401 {object} response.ErrorEnvelope
// @Router /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setCookie(c, res.Token, int(time.Until(res.ExpiresAt).Seconds()))
	response.OK(c, dto.LoginResponse{Success: true, User: res.User})
}

// Logout godoc
// @Summary Logout current session
// @Description Deletes the session record and clears the cookie; succeeds without a session
// @Tags Authentication
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /api/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.Token(c, h.cookie.Name)); err != nil {
		response.Error(c, err)
		return
	}
	h.setCookie(c, "", -1)
	response.Success(c)
}

// CurrentUser godoc
// @Summary Current user
// @Description Reports whether the caller is logged in and who they are
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.CurrentUserResponse
// @Router /api/user [get]
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		response.OK(c, dto.CurrentUserResponse{Authenticated: false})
		return
	}
	info, err := h.service.CurrentUser(c.Request.Context(), session)
	if err != nil {
		if appErrors.FromError(err).Status == http.StatusUnauthorized {
			response.OK(c, dto.CurrentUserResponse{Authenticated: false})
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CurrentUserResponse{Authenticated: true, User: info})
}

// LoginPage sends admins to the back-office and everyone else to the frontend.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	session, err := h.service.ResolveSession(c.Request.Context(), middleware.Token(c, h.cookie.Name))
	if err == nil && session.Role == models.RoleAdmin && session.AdminLoggedIn {
		c.Redirect(http.StatusFound, "/admin/")
		return
	}
	c.Redirect(http.StatusFound, h.frontendURL)
}

// AdminLogout ends the session and returns to the admin login page.
func (h *AuthHandler) AdminLogout(c *gin.Context) {
	_ = h.service.Logout(c.Request.Context(), middleware.Token(c, h.cookie.Name))
	h.setCookie(c, "", -1)
	c.Redirect(http.StatusFound, h.adminLoginURL)
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
