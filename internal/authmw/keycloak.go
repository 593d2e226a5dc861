package authmw

import (
	"context"
	"fmt"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"
	"kyri56xcaesar/marathon-proj/internal/logger"

	"github.com/Nerzal/gocloak/v13"
)

// Service is the Keycloak admin client plus the token middleware.
type Service struct {
	Client       *gocloak.GoCloak
	Realm        string
	clientID     string
	clientSecret string

	KCAuth *KeycloakAuth
}

func NewService(baseURL, Realm, clientID, issuer, aud, clientSecret string) (*Service, error) {
	client := gocloak.NewClient("http://" + baseURL)

	// the middleware authenticatior
	kcAuth, err := NewKeycloakAuth(
		fmt.Sprintf(
			"http://%s/realms/%s/protocol/openid-connect/certs",
			baseURL,
			Realm,
		),
		issuer,
		aud,
		clientID,
	)
	if err != nil {
		logger.Printf("failed to instantiate the kc authenticator middleware: %v", err)

		return nil, err
	}

	s := &Service{
		Client:       client,
		Realm:        Realm,
		clientID:     clientID,
		clientSecret: clientSecret,
	}

	s.KCAuth = kcAuth

	if err := s.selfTest(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) selfTest() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jwt, err := s.LoginAdmin(ctx)
	if err != nil {
		return fmt.Errorf("keycloak auth failed: %w", err)
	}

	// Minimal permission check (safe & cheap)
	_, err = s.Client.GetRealm(ctx, jwt.AccessToken, s.Realm)
	if err != nil {
		return fmt.Errorf("keycloak permission check failed: %w", err)
	}

	return nil
}

func (s *Service) LoginAdmin(ctx context.Context) (*gocloak.JWT, error) {
	return s.Client.LoginClient(
		ctx,
		s.clientID,
		s.clientSecret,
		s.Realm,
	)
}

func (s *Service) GetUserByUsername(ctx context.Context, token, username string) (*gocloak.User, error) {
	users, err := s.Client.GetUsers(ctx, token, s.Realm, gocloak.GetUsersParams{
		Username: gocloak.StringP(username),
		Exact:    gocloak.BoolP(true),
		Max:      gocloak.IntP(2),
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, governance.NotFound("user %s not found", username)
	}
	if len(users) > 1 {
		return nil, governance.Conflict("multiple users matched username %s", username)
	}
	return users[0], nil
}

// ResolveUsername returns the Keycloak user id (the token subject) of the
// named user.
func (s *Service) ResolveUsername(ctx context.Context, username string) (string, error) {
	jwt, err := s.LoginAdmin(ctx)
	if err != nil {
		return "", fmt.Errorf("keycloak admin login: %w", err)
	}
	u, err := s.GetUserByUsername(ctx, jwt.AccessToken, username)
	if err != nil {
		return "", err
	}
	if u.ID == nil {
		return "", governance.NotFound("user %s not found", username)
	}
	return *u.ID, nil
}
