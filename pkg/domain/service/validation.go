package service

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"order/pkg/domain/model"
)

type PaymentDetails struct {
	CardNumber         string
	CardHolderName     string
	CardSecurityNumber string
	CardType           string
	// Expiration is MM/YY or MM/YYYY.
	Expiration string
}

func validateAddress(address model.Address) error {
	fields := map[string]string{
		"street":  address.Street,
		"city":    address.City,
		"state":   address.State,
		"country": address.Country,
		"zipCode": address.ZipCode,
	}
	for _, name := range []string{"street", "city", "state", "country", "zipCode"} {
		if strings.TrimSpace(fields[name]) == "" {
			return errors.Wrapf(model.ErrInvalidAddress, "%s is required", name)
		}
	}
	return nil
}

// paymentMethodFrom validates the raw card details and keeps only the summary.
func paymentMethodFrom(details PaymentDetails, now time.Time) (*model.PaymentMethod, error) {
	number := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, details.CardNumber)
	if len(number) < 12 || len(number) > 19 || !digitsOnly(number) {
		return nil, errors.Wrap(model.ErrInvalidPaymentDetails, "card number must have 12 to 19 digits")
	}
	if strings.TrimSpace(details.CardHolderName) == "" {
		return nil, errors.Wrap(model.ErrInvalidPaymentDetails, "card holder name is required")
	}
	cvv := strings.TrimSpace(details.CardSecurityNumber)
	if len(cvv) < 3 || len(cvv) > 4 || !digitsOnly(cvv) {
		return nil, errors.Wrap(model.ErrInvalidPaymentDetails, "card security number must have 3 or 4 digits")
	}

	expiresAt, err := parseExpiration(details.Expiration)
	if err != nil {
		return nil, err
	}
	if !now.Before(expiresAt) {
		return nil, errors.Wrap(model.ErrInvalidPaymentDetails, "card is expired")
	}

	return &model.PaymentMethod{
		CardType:        strings.TrimSpace(details.CardType),
		CardHolderName:  strings.TrimSpace(details.CardHolderName),
		CardNumberLast4: number[len(number)-4:],
		Expiration:      strings.TrimSpace(details.Expiration),
	}, nil
}

// parseExpiration returns the first instant after which the card is no longer valid.
func parseExpiration(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"01/06", "01/2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.AddDate(0, 1, 0), nil
		}
	}
	return time.Time{}, errors.Wrapf(model.ErrInvalidPaymentDetails, "expiration %q must be MM/YY or MM/YYYY", value)
}

// digitsOnly accepts ASCII digits only, so byte length equals digit count.
func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
