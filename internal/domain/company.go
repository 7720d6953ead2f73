package domain

import "time"

// Company is a tenant whose users own polls
type Company struct {
	ID                 int        `json:"id"`
	Name               string     `json:"name"`
	FullName           string     `json:"full_name"`
	INN                string     `json:"inn"`
	LegalAddress       string     `json:"legal_address"`
	ActualAddress      string     `json:"actual_address"`
	Phone              string     `json:"phone"`
	DirectorName       string     `json:"director_name"`
	AdminEmail         string     `json:"admin_email"`
	Licenses           int        `json:"licenses"`
	SubscriptionStart  *time.Time `json:"subscription_start,omitempty"`
	SubscriptionEnd    *time.Time `json:"subscription_end,omitempty"`
	SubscriptionActive bool       `json:"subscription_active"`
}

// CreateCompanyRequest is the payload for registering a tenant
type CreateCompanyRequest struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	INN           string `json:"inn"`
	LegalAddress  string `json:"legal_address"`
	ActualAddress string `json:"actual_address"`
	Phone         string `json:"phone"`
	DirectorName  string `json:"director_name"`
	AdminEmail    string `json:"admin_email"`
	Licenses      int    `json:"licenses"`
}
