// Package linktoken signs the confirm/reject links emailed to vendors. A
// token is a capability scoped to a fixed list of orders and a single
// action; it does not authenticate a user.
package linktoken

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Action string

const (
	ActionConfirm Action = "confirm"
	ActionReject  Action = "reject"

	issuer = "dashboard-order-link"
)

var (
	ErrInvalidToken = errors.New("invalid order link token")
	ErrWrongAction  = errors.New("order link token is for a different action")
)

type Claims struct {
	jwt.RegisteredClaims
	OrderIDs []uuid.UUID `json:"order_ids"`
	Action   Action      `json:"action"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token for action over orderIDs and its expiry.
func (i *Issuer) Sign(orderIDs []uuid.UUID, action Action) (string, time.Time, error) {
	if len(orderIDs) == 0 {
		return "", time.Time{}, errors.New("sign order link: no orders")
	}
	if action != ActionConfirm && action != ActionReject {
		return "", time.Time{}, fmt.Errorf("sign order link: unknown action %q", action)
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		OrderIDs: orderIDs,
		Action:   action,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign order link: %w", err)
	}
	return signed, exp, nil
}

// Verify parses token and checks it was issued for want.
func (i *Issuer) Verify(token string, want Action) ([]uuid.UUID, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Action != want {
		return nil, ErrWrongAction
	}
	if len(claims.OrderIDs) == 0 {
		return nil, fmt.Errorf("%w: no orders", ErrInvalidToken)
	}
	return claims.OrderIDs, nil
}

// Links builds the confirm and reject URLs for orderIDs under baseURL.
func (i *Issuer) Links(baseURL string, orderIDs []uuid.UUID) (confirm, reject string, expires time.Time, err error) {
	ct, expires, err := i.Sign(orderIDs, ActionConfirm)
	if err != nil {
		return "", "", time.Time{}, err
	}
	rt, _, err := i.Sign(orderIDs, ActionReject)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return baseURL + "/orders/confirm?token=" + url.QueryEscape(ct),
		baseURL + "/orders/reject?token=" + url.QueryEscape(rt),
		expires, nil
}
