package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

const (
	sessionCookieName = "session"
	tokenContextKey   = "sessionToken"
	userContextKey    = "user"
)

// Claims represents the session claims transmitted via the session cookie.
type Claims struct {
	jwt.StandardClaims
	Email string    `json:"email,omitempty"`
	Role  user.Role `json:"role,omitempty"`
}

func NewClaims(usr user.User, issuer string, ttl time.Duration) *Claims {
	now := core.NowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    issuer,
			Subject:   usr.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: usr.Email,
		Role:  usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the session Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type sessionManager struct {
	issuer    string
	secretKey string
	ttl       time.Duration
	secure    bool
	usrSvc    user.Service
	jwtConfig middleware.JWTConfig
}

func newSessionManager(conf *core.Config, usrSvc user.Service) *sessionManager {
	return &sessionManager{
		issuer:    conf.AppName,
		secretKey: conf.SecretKey,
		ttl:       conf.Server.SessionTTL,
		secure:    conf.Server.SecureCookies,
		usrSvc:    usrSvc,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    tokenContextKey,
			Claims:        new(Claims),
			TokenLookup:   "cookie:" + sessionCookieName,
		},
	}
}

// middleware authenticates the session cookie and loads the session user.
func (sm *sessionManager) middleware() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTWithConfig(sm.jwtConfig), sm.loadUser}
}

func (sm *sessionManager) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := contextClaims(ctx)
		if err != nil {
			return err
		}
		usr, err := sm.usrSvc.GetByID(ctx.Request().Context(), claims.Subject)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return errUnauthorized
			}
			return errors.Wrap(err, "finding session user")
		}
		if !usr.IsActive {
			return errUnauthorized
		}
		ctx.Set(userContextKey, usr)
		return next(ctx)
	}
}

func (sm *sessionManager) setCookie(ctx echo.Context, usr user.User) error {
	token, err := GenerateToken(NewClaims(usr, sm.issuer, sm.ttl), sm.secretKey)
	if err != nil {
		return err
	}
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  core.NowFunc().Add(sm.ttl),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearSessionCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func contextToken(ctx echo.Context) (*jwt.Token, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		return token, nil
	}
	return nil, errUnauthorized
}

func contextClaims(ctx echo.Context) (*Claims, error) {
	token, err := contextToken(ctx)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}

// bearerToken returns the raw session token, forwarded to the attendance service.
func bearerToken(ctx echo.Context) string {
	if token, err := contextToken(ctx); err == nil {
		return token.Raw
	}
	return ""
}

func contextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// sessionUser returns the session user, or a zero User.
func sessionUser(ctx echo.Context) user.User {
	usr, _ := contextUser(ctx)
	return usr
}

func requireRole(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := contextUser(ctx)
			if err != nil {
				return err
			}
			for _, r := range roles {
				if usr.Role == r {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}

	loginPage struct {
		Email string
		Error string
	}
)

func (s *server) loginPage(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "login", loginPage{})
}

func (s *server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	data.Email = core.CleanString(data.Email, true /* lower */)

	usr, err := s.deps.UserSvc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidCredentials, user.ErrAccountDeactivated:
			return ctx.Render(http.StatusUnauthorized, "login", loginPage{Email: data.Email, Error: errors.Cause(err).Error()})
		}
		return errors.Wrap(err, "authenticating")
	}

	if err = s.sessions.setCookie(ctx, usr); err != nil {
		return errors.Wrap(err, "setting session cookie")
	}
	return ctx.Redirect(http.StatusSeeOther, "/")
}

func (s *server) logout(ctx echo.Context) error {
	clearSessionCookie(ctx)
	return ctx.Redirect(http.StatusSeeOther, "/login")
}
