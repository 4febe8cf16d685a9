package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/access"
	"github.com/makumbi/hudhurio/core/staff"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "staffToken",
		Claims:        new(Claims),
	}
	jwtConf *core.Config
)

func initJWTConfig(conf *core.Config) {
	appJWTConfig.SigningKey = []byte(conf.SecretKey)
	jwtConf = conf
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt  int64    `json:"oriat,omitempty"`
	Username      string   `json:"username,omitempty"`
	Email         string   `json:"email,omitempty"`
	IsTeacher     bool     `json:"is_teacher,omitempty"`
	IsCoordinator bool     `json:"is_coordinator,omitempty"`
	IsAdmin       bool     `json:"is_admin,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

func GetStaffClaims(stf staff.Staff, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    jwtConf.AppName,
			Subject:   stf.ID,
			Audience:  "Hudhurio",
			ExpiresAt: now.Add(jwtConf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:  oriat,
		Username:      stf.Username,
		Email:         stf.Email,
		IsTeacher:     stf.IsTeacher(),
		IsCoordinator: stf.IsCoordinator(),
		IsAdmin:       stf.IsAdmin(),
		Roles:         stf.Roles,
	}
	return claims
}

func authenticate(ctx context.Context, uname, pwd string, svc staff.Service) (*Claims, error) {
	stf, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding staff by username or email")
	}
	if err = stf.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if stf.IsActive != nil && !*stf.IsActive {
		return nil, errAccountDeactivated
	}
	stf, err = svc.SetLastLogin(ctx, stf)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetStaffClaims(stf), nil
}

// GenerateToken generates a signed JWT token string representing the staff Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// adminMiddleware restricts an endpoint to admin staff.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsAdmin {
				return access.ErrForbidden
			}
			return next(ctx)
		}
	}
}

// getContextPrincipal derives the acting principal from the request's JWT.
func getContextPrincipal(ctx echo.Context) (access.Principal, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return access.Principal{}, err
	}
	return access.Principal{StaffID: claims.Subject, Roles: claims.Roles}, nil
}

func refreshToken(ctx echo.Context, svc staff.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	stf, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return "", errors.Wrap(err, "finding staff by ID")
	}

	// check if staff member is still active
	if stf.IsActive != nil && !*stf.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(jwtConf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetStaffClaims(stf, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
