package authmw

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AdminRole is the realm or client role that grants platform-wide
// moderation.
const AdminRole = "admin"

const actorKey = "kc.actor"

type KeycloakAuth struct {
	Issuer   string // e.g. http://localhost:8080/realms/myrealm
	Audience string // usually your client-id (if you validate aud)
	ClientID string // for client roles under resource_access[ClientID].roles

	JWKS    *keyfunc.JWKS
	Keyfunc jwt.Keyfunc
	// optional clock skew
	Leeway time.Duration
}

// Build once at startup (don’t fetch JWKS on every request)
func NewKeycloakAuth(jwksURL, issuer, audience, clientID string) (*KeycloakAuth, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute * 5,
		RefreshTimeout:   time.Second * 10,
	})
	if err != nil {
		return nil, err
	}

	return &KeycloakAuth{
		Issuer:   issuer,
		Audience: audience,
		ClientID: clientID,
		JWKS:     jwks,
		Keyfunc:  jwks.Keyfunc,
		Leeway:   30 * time.Second,
	}, nil
}

// Close stops the background JWKS refresh.
func (a *KeycloakAuth) Close() {
	if a.JWKS != nil {
		a.JWKS.EndBackground()
	}
}

type KCClaims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Name              string `json:"name"`

	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`

	ResourceAccess map[string]struct {
		Roles []string `json:"roles"`
	} `json:"resource_access"`
}

// Authenticate accepts any valid token and stores the caller's actor.
func (a *KeycloakAuth) Authenticate() gin.HandlerFunc {
	return a.RequireRoles()
}

// RequireRoles authenticates the caller and, when roles are given, demands
// at least one of them.
func (a *KeycloakAuth) RequireRoles(anyOf ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extractAccessToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims := &KCClaims{}
		_, err = jwt.ParseWithClaims(tokenStr, claims, a.Keyfunc,
			jwt.WithIssuer(a.Issuer),
			jwt.WithAudience(a.Audience),
			jwt.WithLeeway(a.Leeway),
			jwt.WithValidMethods([]string{"RS256"}),
		)
		if err != nil || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		roles := collectRoles(claims, a.ClientID)

		c.Set("kc.username", claims.PreferredUsername)
		c.Set("kc.roles", roles)
		c.Set("kc.sub", claims.Subject)
		SetActor(c, governance.Actor{
			UserID: claims.Subject,
			Admin:  hasAnyRole(roles, AdminRole),
		})

		if len(anyOf) > 0 && !hasAnyRole(roles, anyOf...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}

		c.Next()
	}
}

func SetActor(c *gin.Context, actor governance.Actor) {
	c.Set(actorKey, actor)
}

// ActorFrom returns the authenticated caller, or the zero actor when the
// request carried no valid token.
func ActorFrom(c *gin.Context) governance.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return governance.Actor{}
	}
	actor, _ := v.(governance.Actor)
	return actor
}

// --- helpers ---

func extractAccessToken(c *gin.Context) (string, error) {
	// 1) Authorization: Bearer <token>
	authz := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:]), nil
	}

	// 2) cookie fallback
	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie, nil
	}

	return "", errors.New("missing access token")
}

func collectRoles(claims *KCClaims, clientID string) []string {
	out := make([]string, 0, 16)

	// realm roles
	out = append(out, claims.RealmAccess.Roles...)

	// client roles (resource_access)
	if clientID != "" && claims.ResourceAccess != nil {
		if ra, ok := claims.ResourceAccess[clientID]; ok {
			out = append(out, ra.Roles...)
		}
	}

	return uniq(out)
}

func hasAnyRole(userRoles []string, anyOf ...string) bool {
	roleSet := make(map[string]struct{}, len(userRoles))
	for _, r := range userRoles {
		roleSet[r] = struct{}{}
	}
	for _, required := range anyOf {
		if _, ok := roleSet[required]; ok {
			return true
		}
	}
	return false
}

func uniq(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
