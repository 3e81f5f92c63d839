// README: Operator identity verification with Firebase ID tokens.
package infra

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// RoleClaim is the custom claim that carries an operator's role.
const RoleClaim = "role"

var ErrTokenRevoked = errors.New("operator token revoked")

// Operator is the identity behind a verified ID token.
type Operator struct {
	UID  string
	Role string // empty when the token carries no role claim
}

type OperatorVerifier interface {
	VerifyOperator(ctx context.Context, idToken string) (*Operator, error)
}

type FirebaseOptions struct {
	ProjectID string
	// CredentialsFile is a service account JSON; empty means application-default credentials.
	CredentialsFile string
	// CheckRevoked makes every verification ask Firebase whether the session was revoked.
	CheckRevoked bool
}

type firebaseOperators struct {
	verify func(ctx context.Context, idToken string) (*auth.Token, error)
}

func NewOperatorVerifier(ctx context.Context, opts FirebaseOptions) (OperatorVerifier, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app %s: %w", opts.ProjectID, err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	verify := client.VerifyIDToken
	if opts.CheckRevoked {
		verify = client.VerifyIDTokenAndCheckRevoked
	}
	return &firebaseOperators{verify: verify}, nil
}

func (f *firebaseOperators) VerifyOperator(ctx context.Context, idToken string) (*Operator, error) {
	token, err := f.verify(ctx, idToken)
	if err != nil {
		if auth.IsIDTokenRevoked(err) {
			return nil, fmt.Errorf("%w: %v", ErrTokenRevoked, err)
		}
		return nil, err
	}
	return operatorFromToken(token), nil
}

func operatorFromToken(token *auth.Token) *Operator {
	op := &Operator{UID: token.UID}
	op.Role, _ = token.Claims[RoleClaim].(string)
	return op
}
