package prescription

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// Status tracks the prescription lifecycle.
type Status string

const (
	StatusActive    Status = "active"
	StatusClaimed   Status = "claimed"
	StatusFulfilled Status = "fulfilled"
	StatusExpired   Status = "expired"
)

// ClaimStatus tracks a pharmacy's redemption act. At most one claim per
// prescription ever reaches dispensed.
type ClaimStatus string

const (
	ClaimReady     ClaimStatus = "ready"
	ClaimDispensed ClaimStatus = "dispensed"
	ClaimDisputed  ClaimStatus = "disputed"
)

// Validity is the redemption window of a prescription.
const Validity = 30 * 24 * time.Hour

// Item is one medication line.
type Item struct {
	Drug                string
	Strength            string
	Form                string
	Quantity            int
	Instructions        string
	SubstitutionAllowed bool
}

// Prescription carries the redemption token that authorizes one-time
// fulfillment. The token is generated once and never reused; once
// RedeemEnabled is cleared it can never be re-enabled.
type Prescription struct {
	ID            string
	EncounterID   string
	ClinicianID   string
	PatientID     string
	Items         []Item
	Token         string
	RedeemEnabled bool
	ExpiresAt     time.Time
	Status        Status
	CreatedAt     time.Time
}

// Claim is a pharmacy's in-progress or completed redemption.
type Claim struct {
	ID             string
	PrescriptionID string
	PharmacyID     string
	Status         ClaimStatus
	DispensedItems []Item
	CreatedAt      time.Time
}

// RedemptionView is the masked projection returned to pharmacies: line items
// and a non-reversible clinician reference only. No patient contact data, no
// full clinician identity.
type RedemptionView struct {
	PrescriptionID string
	Items          []Item
	ClinicianRef   string
	ExpiresAt      time.Time
}

// NewToken returns an opaque redemption token with 256 bits of entropy.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MaskClinician renders a clinician id as a short one-way reference token.
func MaskClinician(clinicianID string) string {
	sum := sha256.Sum256([]byte(clinicianID))
	return hex.EncodeToString(sum[:4])
}
