package domain

import (
	"errors"
	"strings"
	"time"
)

type Address struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Address1   string    `json:"address1"`
	Address2   string    `json:"address2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state,omitempty"`
	Zip        string    `json:"zip"`
	Country    string    `json:"country"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddressFields is the postal data a customer submits for a new address.
type AddressFields struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

var ErrIncompleteAddress = errors.New("address requires first_name, last_name, address1, city, zip and country")

// IsZero reports whether no field was supplied at all.
func (f AddressFields) IsZero() bool {
	return strings.TrimSpace(f.FirstName+f.LastName+f.Address1+f.Address2+
		f.City+f.State+f.Zip+f.Country+f.Phone) == ""
}

func (f AddressFields) Validate() error {
	for _, v := range []string{f.FirstName, f.LastName, f.Address1, f.City, f.Zip, f.Country} {
		if strings.TrimSpace(v) == "" {
			return ErrIncompleteAddress
		}
	}
	return nil
}

// ToAddress builds an unsaved address owned by customerID.
func (f AddressFields) ToAddress(customerID string) *Address {
	return &Address{
		CustomerID: customerID,
		FirstName:  strings.TrimSpace(f.FirstName),
		LastName:   strings.TrimSpace(f.LastName),
		Address1:   strings.TrimSpace(f.Address1),
		Address2:   strings.TrimSpace(f.Address2),
		City:       strings.TrimSpace(f.City),
		State:      strings.TrimSpace(f.State),
		Zip:        strings.TrimSpace(f.Zip),
		Country:    strings.TrimSpace(f.Country),
		Phone:      strings.TrimSpace(f.Phone),
		CreatedAt:  time.Now().UTC(),
	}
}
