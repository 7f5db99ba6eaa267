// Package domain defines the core entities of the Finanzo dashboard.
// These models are independent of the local cache and of Supabase and
// represent the canonical data structures used throughout the service.
package domain

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date format used by transactions.
const DateLayout = "2006-01-02"

// ============================================================
// Enumerations
// ============================================================

// TransactionType separates income from expense.
type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Role of a local account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// View is the screen currently shown by the frontend.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewHistory   View = "history"
)

// ============================================================
// Ledger
// ============================================================

// Transaction is a single income or expense entry. Amount is sign-less;
// the direction comes from Type.
type Transaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Date        string          `json:"date"` // YYYY-MM-DD
	CategoryID  string          `json:"categoryId"`
	Type        TransactionType `json:"type"`
}

// Period returns the YYYY-MM bucket the transaction falls into.
func (t Transaction) Period() Period {
	if len(t.Date) < 7 {
		return Period(t.Date)
	}
	return Period(t.Date[:7])
}

// Category groups transactions of one type.
type Category struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Icon  string          `json:"icon"`
	Color CategoryColor   `json:"color"`
	Type  TransactionType `json:"type"`
}

// EnergyBill compares the incumbent provider's bill (A) against the
// discounted provider's bill (B) for one month.
type EnergyBill struct {
	ID              string  `json:"id"`
	Period          string  `json:"period"` // free text, e.g. "Mar/2024"
	KWh             float64 `json:"kwh"`
	ProviderATotal  float64 `json:"providerATotal"`
	ProviderBTotal  float64 `json:"providerBTotal"`
	DiscountApplied bool    `json:"discountApplied"`
}

// Savings is always derived, never stored.
func (b EnergyBill) Savings() float64 {
	return b.ProviderATotal - b.ProviderBTotal
}

// ============================================================
// Accounts / identity
// ============================================================

// UserAccount is an entry of the local account registry. Accounts never
// leave the local cache.
type UserAccount struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Role         Role   `json:"role"`
	Theme        Theme  `json:"theme,omitempty"`

	// LegacyPassword is read from caches written before hashing was
	// introduced and is cleared on the next save.
	LegacyPassword string `json:"password,omitempty"`
}

// Profile strips the credential from the account.
func (a UserAccount) Profile() UserProfile {
	return UserProfile{Email: a.Email, Name: a.Name, Role: a.Role, Theme: a.Theme}
}

// UserProfile is what a successful login exposes.
type UserProfile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Theme Theme  `json:"theme,omitempty"`
}

// NewAccount is the input for registering a local account.
type NewAccount struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// NormalizeEmail is the canonical key of the account registry.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ============================================================
// Remote identity (Supabase Auth)
// ============================================================

// RemoteSession is the token pair issued by the hosted auth service.
type RemoteSession struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
}

// Expired reports whether the access token is past its expiry.
func (s *RemoteSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// RemoteUser is the identity behind an access token.
type RemoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// RemoteProfile is the row of the profiles table.
type RemoteProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Theme Theme  `json:"theme"`
}
