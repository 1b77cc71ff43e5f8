package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider/cognitoidentityprovideriface"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/utils"
)

// IdentityProvider checks credentials. Enroll is called before the account row is written
// and Withdraw undoes it when that write fails.
type IdentityProvider interface {
	Enroll(ctx context.Context, user *models.User, password string) error
	Withdraw(ctx context.Context, user *models.User) error
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// LocalProvider keeps bcrypt hashes in the users table
type LocalProvider struct {
	users UserStore
	cost  int
}

func NewLocalProvider(users UserStore) *LocalProvider {
	return &LocalProvider{users: users, cost: bcrypt.DefaultCost}
}

func (p *LocalProvider) Enroll(_ context.Context, user *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	return nil
}

func (p *LocalProvider) Withdraw(context.Context, *models.User) error {
	return nil
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := p.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// CognitoConfig holds the user pool settings
type CognitoConfig struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string
}

// CognitoProvider delegates credentials to a Cognito user pool and maps the pool's subject to
// users.cognito_sub
type CognitoProvider struct {
	cfg     CognitoConfig
	client  cognitoidentityprovideriface.CognitoIdentityProviderAPI
	jwks    *JWKSValidator
	users   UserStore
	breaker *utils.CircuitBreaker
}

// NewCognitoProvider creates a provider backed by a real AWS session
func NewCognitoProvider(cfg CognitoConfig, users UserStore, breaker *utils.CircuitBreaker) (*CognitoProvider, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return newCognitoProvider(cfg, cognitoidentityprovider.New(sess), NewJWKSValidator(cfg.Region, cfg.UserPoolID), users, breaker), nil
}

func newCognitoProvider(cfg CognitoConfig, client cognitoidentityprovideriface.CognitoIdentityProviderAPI, jwks *JWKSValidator, users UserStore, breaker *utils.CircuitBreaker) *CognitoProvider {
	return &CognitoProvider{cfg: cfg, client: client, jwks: jwks, users: users, breaker: breaker}
}

// secretHash creates the SECRET_HASH parameter required when the app client has a secret
func (p *CognitoProvider) secretHash(username string) string {
	if p.cfg.ClientSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(p.cfg.ClientSecret))
	mac.Write([]byte(username + p.cfg.ClientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *CognitoProvider) call(fn func() error) error {
	err := p.breaker.Call(fn)
	if errors.Is(err, utils.ErrCircuitOpen) || errors.Is(err, utils.ErrTooManyRequests) {
		return ErrProviderUnavailable
	}
	return err
}

func (p *CognitoProvider) Enroll(ctx context.Context, user *models.User, password string) error {
	input := &cognitoidentityprovider.SignUpInput{
		ClientId: aws.String(p.cfg.ClientID),
		Username: aws.String(user.Email),
		Password: aws.String(password),
		UserAttributes: []*cognitoidentityprovider.AttributeType{
			{Name: aws.String("email"), Value: aws.String(user.Email)},
			{Name: aws.String("custom:role"), Value: aws.String(string(user.Role))},
		},
	}
	if hash := p.secretHash(user.Email); hash != "" {
		input.SecretHash = aws.String(hash)
	}

	var out *cognitoidentityprovider.SignUpOutput
	err := p.call(func() error {
		var signUpErr error
		out, signUpErr = p.client.SignUpWithContext(ctx, input)
		return signUpErr
	})
	if err != nil {
		return fmt.Errorf("cognito sign-up failed: %w", err)
	}

	user.CognitoSub = out.UserSub
	return nil
}

func (p *CognitoProvider) Withdraw(ctx context.Context, user *models.User) error {
	err := p.call(func() error {
		_, deleteErr := p.client.AdminDeleteUserWithContext(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
			UserPoolId: aws.String(p.cfg.UserPoolID),
			Username:   aws.String(user.Email),
		})
		return deleteErr
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"email": user.Email,
			"error": err,
		}).Warn("Failed to compensate orphaned Cognito user")
		return err
	}
	return nil
}

func (p *CognitoProvider) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	params := map[string]*string{
		"USERNAME": aws.String(email),
		"PASSWORD": aws.String(password),
	}
	if hash := p.secretHash(email); hash != "" {
		params["SECRET_HASH"] = aws.String(hash)
	}

	var out *cognitoidentityprovider.InitiateAuthOutput
	err := p.call(func() error {
		var authErr error
		out, authErr = p.client.InitiateAuthWithContext(ctx, &cognitoidentityprovider.InitiateAuthInput{
			AuthFlow:       aws.String(cognitoidentityprovider.AuthFlowTypeUserPasswordAuth),
			ClientId:       aws.String(p.cfg.ClientID),
			AuthParameters: params,
		})
		return authErr
	})
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		var aerr awserr.Error
		if errors.As(err, &aerr) {
			switch aerr.Code() {
			case cognitoidentityprovider.ErrCodeNotAuthorizedException, cognitoidentityprovider.ErrCodeUserNotFoundException:
				return nil, ErrInvalidCredentials
			}
		}
		return nil, fmt.Errorf("cognito authentication failed: %w", err)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.IdToken == nil {
		return nil, ErrInvalidCredentials
	}

	claims, err := p.jwks.ValidateToken(*out.AuthenticationResult.IdToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	sub := getClaimString(claims, "sub")
	if sub == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := p.users.FindUserByCognitoSub(ctx, sub)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrAccountDisabled
	}
	return user, nil
}
