package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every message published to Kafka. Consumers
// dispatch on Type and unmarshal Data into the payload they expect.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Event types published across services.
const (
	EventCallUploaded      = "call.uploaded"
	EventCallTranscribe    = "call.transcribe"
	EventCallCompleted     = "call.completed"
	EventCallFailed        = "call.failed"
	EventLoadStatusChanged = "load.status_changed"
	EventCarrierVerified   = "carrier.verified"
)

// Call is a recorded sales or dispatch call moving through the
// processing pipeline.
type Call struct {
	ID              uuid.UUID  `json:"id"`
	OrgID           uuid.UUID  `json:"org_id"`
	CustomerName    string     `json:"customer_name"`
	CustomerCompany string     `json:"customer_company,omitempty"`
	SalesRep        string     `json:"sales_rep"`
	Direction       string     `json:"direction"` // inbound | outbound
	CallDate        time.Time  `json:"call_date"`
	DurationSeconds int        `json:"duration_seconds"`
	AudioPath       string     `json:"audio_path,omitempty"`
	AudioFormat     string     `json:"audio_format,omitempty"`
	AudioSizeBytes  int64      `json:"audio_size_bytes,omitempty"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	StatusMessage   string     `json:"status_message,omitempty"`
	Sentiment       string     `json:"sentiment,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	LoadID          *uuid.UUID `json:"load_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TranscriptUtterance is a single diarized segment of a call transcript.
type TranscriptUtterance struct {
	ID         uuid.UUID `json:"id"`
	CallID     uuid.UUID `json:"call_id"`
	Sequence   int       `json:"sequence"`
	Speaker    string    `json:"speaker"` // rep | customer
	Text       string    `json:"text"`
	StartTime  float64   `json:"start_time"`
	EndTime    float64   `json:"end_time"`
	Sentiment  string    `json:"sentiment,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// CallInsight is a qualitative finding mined from a transcript.
type CallInsight struct {
	ID         uuid.UUID `json:"id"`
	CallID     uuid.UUID `json:"call_id"`
	Type       string    `json:"type"` // pain_point | action_item | competitor
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// Insight types.
const (
	InsightPainPoint  = "pain_point"
	InsightActionItem = "action_item"
	InsightCompetitor = "competitor"
)

// CallField is a structured name/value pair extracted from a transcript,
// for example Rate, Origin or Equipment Type.
type CallField struct {
	ID         uuid.UUID `json:"id"`
	CallID     uuid.UUID `json:"call_id"`
	Name       string    `json:"name"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"` // llm | rules
	CreatedAt  time.Time `json:"created_at"`
}

// CallSummary bundles a processed call with everything the pipeline
// produced for it. The completion watcher hands this back and the
// summary cache stores it.
type CallSummary struct {
	Call       Call                  `json:"call"`
	Transcript []TranscriptUtterance `json:"transcript"`
	Insights   []CallInsight         `json:"insights"`
	Fields     []CallField           `json:"fields"`
}

// CallExtraction is the load-shaped payload distilled from a completed
// call. It backs the process endpoint and draft load creation.
type CallExtraction struct {
	CallID          uuid.UUID  `json:"call_id"`
	Origin          string     `json:"origin,omitempty"`
	Destination     string     `json:"destination,omitempty"`
	Rate            string     `json:"rate,omitempty"`
	EquipmentType   string     `json:"equipment_type,omitempty"`
	Commodity       string     `json:"commodity,omitempty"`
	WeightLbs       int        `json:"weight_lbs,omitempty"`
	CarrierName     string     `json:"carrier_name,omitempty"`
	ConfidenceScore float64    `json:"confidence_score"`
	LoadID          *uuid.UUID `json:"load_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// UploadCallRequest carries the multipart form fields accompanying an
// audio upload.
type UploadCallRequest struct {
	CustomerName    string    `json:"customer_name"`
	CustomerCompany string    `json:"customer_company"`
	SalesRep        string    `json:"sales_rep"`
	Direction       string    `json:"direction"`
	CallDate        time.Time `json:"call_date"`
}

// TranscriptionAccepted is returned when a transcription run is admitted.
type TranscriptionAccepted struct {
	CallID          uuid.UUID `json:"call_id"`
	TranscriptionID uuid.UUID `json:"transcription_id"`
	Status          string    `json:"status"`
}

// Load is a shipment moving through the brokerage workflow.
type Load struct {
	ID            uuid.UUID              `json:"id"`
	OrgID         uuid.UUID              `json:"org_id"`
	ReferenceCode string                 `json:"reference_code"`
	Status        string                 `json:"status"`
	Progress      int                    `json:"progress"`
	ShipperName   string                 `json:"shipper_name"`
	Origin        string                 `json:"origin"`
	Destination   string                 `json:"destination"`
	PickupDate    *time.Time             `json:"pickup_date,omitempty"`
	DeliveryDate  *time.Time             `json:"delivery_date,omitempty"`
	EquipmentType string                 `json:"equipment_type,omitempty"`
	Commodity     string                 `json:"commodity,omitempty"`
	WeightLbs     int                    `json:"weight_lbs,omitempty"`
	ShipperRate   int64                  `json:"shipper_rate_cents,omitempty"`
	CarrierRate   int64                  `json:"carrier_rate_cents,omitempty"`
	CarrierID     *uuid.UUID             `json:"carrier_id,omitempty"`
	ShipperID     *uuid.UUID             `json:"shipper_id,omitempty"`
	SourceCallID  *uuid.UUID             `json:"source_call_id,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// LoadStatusEvent records one workflow transition for audit.
type LoadStatusEvent struct {
	ID         uuid.UUID `json:"id"`
	LoadID     uuid.UUID `json:"load_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateLoadRequest is the payload for creating a load.
type CreateLoadRequest struct {
	ShipperName   string     `json:"shipper_name"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	PickupDate    *time.Time `json:"pickup_date,omitempty"`
	DeliveryDate  *time.Time `json:"delivery_date,omitempty"`
	EquipmentType string     `json:"equipment_type,omitempty"`
	Commodity     string     `json:"commodity,omitempty"`
	WeightLbs     int        `json:"weight_lbs,omitempty"`
	ShipperRate   int64      `json:"shipper_rate_cents,omitempty"`
	CarrierRate   int64      `json:"carrier_rate_cents,omitempty"`
	CarrierID     *uuid.UUID `json:"carrier_id,omitempty"`
	ShipperID     *uuid.UUID `json:"shipper_id,omitempty"`
	SourceCallID  *uuid.UUID `json:"source_call_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// UpdateLoadRequest carries partial load edits. Nil fields are left
// unchanged.
type UpdateLoadRequest struct {
	ShipperName   *string    `json:"shipper_name,omitempty"`
	Origin        *string    `json:"origin,omitempty"`
	Destination   *string    `json:"destination,omitempty"`
	PickupDate    *time.Time `json:"pickup_date,omitempty"`
	DeliveryDate  *time.Time `json:"delivery_date,omitempty"`
	EquipmentType *string    `json:"equipment_type,omitempty"`
	Commodity     *string    `json:"commodity,omitempty"`
	WeightLbs     *int       `json:"weight_lbs,omitempty"`
	ShipperRate   *int64     `json:"shipper_rate_cents,omitempty"`
	CarrierRate   *int64     `json:"carrier_rate_cents,omitempty"`
	CarrierID     *uuid.UUID `json:"carrier_id,omitempty"`
	ShipperID     *uuid.UUID `json:"shipper_id,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// TransitionRequest asks the workflow to move a load to a new status.
type TransitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// Carrier is a trucking company the brokerage books loads with.
type Carrier struct {
	ID            uuid.UUID  `json:"id"`
	OrgID         uuid.UUID  `json:"org_id"`
	Name          string     `json:"name"`
	MCNumber      string     `json:"mc_number,omitempty"`
	DOTNumber     string     `json:"dot_number,omitempty"`
	Status        string     `json:"status"` // active | pending | do_not_use
	State         string     `json:"state,omitempty"`
	City          string     `json:"city,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Email         string     `json:"email,omitempty"`
	EquipmentType string     `json:"equipment_type,omitempty"`
	SafetyRating  string     `json:"safety_rating,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Carrier statuses.
const (
	CarrierActive   = "active"
	CarrierPending  = "pending"
	CarrierDoNotUse = "do_not_use"
)

// CreateCarrierRequest is the payload for registering a carrier.
type CreateCarrierRequest struct {
	Name          string `json:"name"`
	MCNumber      string `json:"mc_number,omitempty"`
	DOTNumber     string `json:"dot_number,omitempty"`
	State         string `json:"state,omitempty"`
	City          string `json:"city,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	EquipmentType string `json:"equipment_type,omitempty"`
}

// UpdateCarrierRequest carries partial carrier edits. Nil fields are
// left unchanged.
type UpdateCarrierRequest struct {
	Name          *string `json:"name,omitempty"`
	MCNumber      *string `json:"mc_number,omitempty"`
	DOTNumber     *string `json:"dot_number,omitempty"`
	Status        *string `json:"status,omitempty"`
	State         *string `json:"state,omitempty"`
	City          *string `json:"city,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Email         *string `json:"email,omitempty"`
	EquipmentType *string `json:"equipment_type,omitempty"`
	SafetyRating  *string `json:"safety_rating,omitempty"`
}

// FMCSASnapshot is the subset of the federal carrier record surfaced
// after verification.
type FMCSASnapshot struct {
	DOTNumber       string    `json:"dot_number"`
	LegalName       string    `json:"legal_name"`
	DBAName         string    `json:"dba_name,omitempty"`
	OperatingStatus string    `json:"operating_status"`
	SafetyRating    string    `json:"safety_rating,omitempty"`
	PowerUnits      int       `json:"power_units"`
	Drivers         int       `json:"drivers"`
	OutOfService    bool      `json:"out_of_service"`
	RetrievedAt     time.Time `json:"retrieved_at"`
}

// Shipper is a customer that tenders freight to the brokerage.
type Shipper struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	State     string    `json:"state,omitempty"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateShipperRequest is the payload for registering a shipper.
type CreateShipperRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}

// Organization is a brokerage tenant.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a member of an organization.
type User struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"` // owner | admin | member
	CreatedAt time.Time `json:"created_at"`
}

// User roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Invitation is a pending offer to join an organization.
type Invitation struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token,omitempty"`
	Status    string    `json:"status"` // pending | accepted | revoked | expired
	InvitedBy uuid.UUID `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Invitation statuses.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
	InviteStatusExpired  = "expired"
)

// BootstrapRequest creates the first organization and its owner.
type BootstrapRequest struct {
	OrgName  string `json:"org_name"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest authenticates an existing user.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// InviteRequest creates an invitation.
type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AcceptInviteRequest redeems an invitation token.
type AcceptInviteRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AuthResponse is returned after a successful login or bootstrap.
type AuthResponse struct {
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         User         `json:"user"`
	Organization Organization `json:"organization"`
}

// Subscription is an organization's billing plan state.
type Subscription struct {
	OrgID             uuid.UUID `json:"org_id"`
	Plan              string    `json:"plan"` // starter | pro | enterprise
	Status            string    `json:"status"`
	Seats             int       `json:"seats"`
	CurrentPeriodEnd  time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Subscription plans.
const (
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)
