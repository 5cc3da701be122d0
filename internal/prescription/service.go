package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/document"
	"github.com/afyalink/afyalink/internal/encounter"
)

var (
	// ErrInvalidCode indicates no prescription matches the redemption token.
	ErrInvalidCode = errors.New("invalid redemption code")
	// ErrDisabled indicates the redemption path has been permanently closed
	// for this prescription.
	ErrDisabled = errors.New("redemption disabled")
	// ErrExpired indicates the prescription is past its validity window.
	ErrExpired = errors.New("prescription expired")
	// ErrUnavailable indicates a rendering or storage collaborator failed.
	ErrUnavailable = errors.New("document pipeline unavailable")
	// ErrForbidden indicates the caller does not own the prescription.
	ErrForbidden = errors.New("not the prescription owner")
)

// EncounterSource resolves encounters for prescribing checks.
type EncounterSource interface {
	Get(ctx context.Context, id string) (encounter.Encounter, error)
}

// Document is the durable rendering of a prescription.
type Document struct {
	URL     string
	Content []byte
}

// Service owns the prescription redemption lifecycle.
type Service struct {
	repo       Repository
	encounters EncounterSource
	renderer   document.Renderer
	store      document.Store
	recorder   audit.Recorder
}

// NewService constructs a prescription service.
func NewService(repo Repository, encounters EncounterSource, renderer document.Renderer, store document.Store, recorder audit.Recorder) *Service {
	return &Service{repo: repo, encounters: encounters, renderer: renderer, store: store, recorder: recorder}
}

// Issue creates a prescription for an encounter that has reached clinical
// work. The header and line items are persisted atomically; the redemption
// token is generated exactly once.
func (s *Service) Issue(ctx context.Context, encounterID, clinicianID string, items []Item) (Prescription, error) {
	if len(items) == 0 {
		return Prescription{}, fmt.Errorf("at least one line item is required")
	}
	for _, item := range items {
		if item.Drug == "" || item.Quantity <= 0 {
			return Prescription{}, fmt.Errorf("each line item needs a drug name and positive quantity")
		}
	}

	enc, err := s.encounters.Get(ctx, encounterID)
	if err != nil {
		return Prescription{}, ErrNotFound
	}
	switch enc.Status {
	case encounter.StatusActive, encounter.StatusExtended, encounter.StatusCompleted:
	default:
		return Prescription{}, ErrNotFound
	}
	if enc.ClinicianID != clinicianID {
		return Prescription{}, ErrForbidden
	}

	token, err := NewToken()
	if err != nil {
		return Prescription{}, err
	}
	now := time.Now().UTC()
	p := Prescription{
		ID:            uuid.NewString(),
		EncounterID:   enc.ID,
		ClinicianID:   clinicianID,
		PatientID:     enc.PatientID,
		Items:         items,
		Token:         token,
		RedeemEnabled: true,
		ExpiresAt:     now.Add(Validity),
		Status:        StatusActive,
		CreatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Prescription{}, err
	}

	_ = s.recorder.Record(ctx, audit.New(clinicianID, "prescription.issued", "prescription", p.ID, map[string]any{
		"encounter_id": enc.ID,
		"items":        len(items),
	}))
	return p, nil
}

// Redeem validates the token and opens a claim, returning the masked
// pharmacy view. Expiry is enforced lazily on read.
func (s *Service) Redeem(ctx context.Context, token, pharmacyID string) (RedemptionView, error) {
	p, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return RedemptionView{}, ErrInvalidCode
	}
	if !p.RedeemEnabled {
		return RedemptionView{}, ErrDisabled
	}
	now := time.Now().UTC()
	if !now.Before(p.ExpiresAt) {
		_ = s.repo.MarkExpired(ctx, p.ID)
		return RedemptionView{}, ErrExpired
	}

	claim := Claim{
		ID:             uuid.NewString(),
		PrescriptionID: p.ID,
		PharmacyID:     pharmacyID,
		Status:         ClaimReady,
		CreatedAt:      now,
	}
	if err := s.repo.CreateClaim(ctx, claim); err != nil {
		return RedemptionView{}, err
	}

	_ = s.recorder.Record(ctx, audit.New(pharmacyID, "prescription.redeemed", "prescription", p.ID, nil))
	return RedemptionView{
		PrescriptionID: p.ID,
		Items:          p.Items,
		ClinicianRef:   MaskClinician(p.ClinicianID),
		ExpiresAt:      p.ExpiresAt,
	}, nil
}

// Fulfill dispenses against the open claim. Exactly one concurrent call per
// prescription succeeds; the rest observe ErrAlreadyUsed.
func (s *Service) Fulfill(ctx context.Context, prescriptionID, pharmacyID string, dispensed []Item) (Claim, error) {
	claim, err := s.repo.Fulfill(ctx, prescriptionID, pharmacyID, dispensed)
	if err != nil {
		return Claim{}, err
	}
	_ = s.recorder.Record(ctx, audit.New(pharmacyID, "prescription.fulfilled", "prescription", prescriptionID, map[string]any{
		"claim_id": claim.ID,
	}))
	return claim, nil
}

// Download renders a durable document for the patient and permanently
// disables the token redemption path. The trade is irreversible: once the
// human-readable backup exists, the token can never be redeemed.
func (s *Service) Download(ctx context.Context, prescriptionID, patientID string) (Document, error) {
	p, err := s.repo.Get(ctx, prescriptionID)
	if err != nil {
		return Document{}, err
	}
	if p.PatientID != patientID {
		return Document{}, ErrForbidden
	}

	data := document.RenderData{
		PrescriptionID: p.ID,
		ClinicianName:  MaskClinician(p.ClinicianID),
		ExpiresAt:      p.ExpiresAt.Format(time.RFC3339),
	}
	for _, item := range p.Items {
		data.Items = append(data.Items, document.RenderItem{
			Drug:         item.Drug,
			Strength:     item.Strength,
			Form:         item.Form,
			Quantity:     item.Quantity,
			Instructions: item.Instructions,
		})
	}
	blob, err := s.renderer.RenderPrescription(ctx, data)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	url, err := s.store.Put(ctx, "prescriptions/"+p.ID+".pdf", "application/pdf", blob)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := s.repo.DisableRedemption(ctx, p.ID); err != nil {
		return Document{}, err
	}

	_ = s.recorder.Record(ctx, audit.New(patientID, "prescription.downloaded", "prescription", p.ID, map[string]any{
		"url": url,
	}))
	return Document{URL: url, Content: blob}, nil
}
