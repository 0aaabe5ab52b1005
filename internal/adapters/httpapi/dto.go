package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/chapter-connect/membership-api/internal/app/patch"
	"github.com/chapter-connect/membership-api/internal/app/reports"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

// optional converts a wire tri-state into the app-layer patch type.
func optional[T any](n nullable.Nullable[T]) patch.Optional[T] {
	if !n.IsSpecified() {
		return patch.Unspecified[T]()
	}
	if n.IsNull() {
		return patch.Null[T]()
	}
	return patch.Some(n.MustGet())
}

// optionalAs is optional with a conversion, used for the string-backed enums.
func optionalAs[T, U any](n nullable.Nullable[T], conv func(T) U) patch.Optional[U] {
	if !n.IsSpecified() {
		return patch.Unspecified[U]()
	}
	if n.IsNull() {
		return patch.Null[U]()
	}
	return patch.Some(conv(n.MustGet()))
}

func optionalDate(n nullable.Nullable[openapi_types.Date]) patch.Optional[time.Time] {
	return optionalAs(n, func(d openapi_types.Date) time.Time { return d.Time })
}

func datePtr(t *time.Time) *openapi_types.Date {
	if t == nil {
		return nil
	}
	return &openapi_types.Date{Time: *t}
}

func timePtr(d *openapi_types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func idPtr[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}

func idString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// Access

type AccessResponse struct {
	Identity     string                            `json:"identity"`
	Role         authz.Role                        `json:"role"`
	Capabilities map[authz.Resource][]authz.Action `json:"capabilities"`
}

// Profiles

type Profile struct {
	ID            string    `json:"id"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Email         string    `json:"email"`
	Phone         *string   `json:"phone"`
	Language      string    `json:"language"`
	EmailOptIn    bool      `json:"emailOptIn"`
	WhatsAppOptIn bool      `json:"whatsappOptIn"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func profileFromDomain(p domain.Profile) Profile {
	return Profile{
		ID:            string(p.ID),
		Role:          string(p.Role),
		Status:        string(p.Status),
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Email:         p.Email,
		Phone:         p.Phone,
		Language:      p.Preferences.Language,
		EmailOptIn:    p.Preferences.EmailOptIn,
		WhatsAppOptIn: p.Preferences.WhatsAppOptIn,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type UpdateProfileRequest struct {
	FirstName     nullable.Nullable[string] `json:"firstName,omitempty"`
	LastName      nullable.Nullable[string] `json:"lastName,omitempty"`
	Email         nullable.Nullable[string] `json:"email,omitempty"`
	Phone         nullable.Nullable[string] `json:"phone,omitempty"`
	Language      nullable.Nullable[string] `json:"language,omitempty"`
	EmailOptIn    nullable.Nullable[bool]   `json:"emailOptIn,omitempty"`
	WhatsAppOptIn nullable.Nullable[bool]   `json:"whatsappOptIn,omitempty"`
	Role          nullable.Nullable[string] `json:"role,omitempty"`
	Status        nullable.Nullable[string] `json:"status,omitempty"`
}

// Memberships

type Membership struct {
	ID           string             `json:"id"`
	ProfileID    string             `json:"profileId"`
	MemberNumber string             `json:"memberNumber"`
	Type         string             `json:"type"`
	Cadence      string             `json:"paymentCadence"`
	FeeMinor     int64              `json:"feeMinor"`
	Currency     string             `json:"currency"`
	Status       string             `json:"status"`
	StartDate    openapi_types.Date `json:"startDate"`
	ExpiryDate   openapi_types.Date `json:"expiryDate"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func membershipFromDomain(m domain.Membership) Membership {
	return Membership{
		ID:           string(m.ID),
		ProfileID:    string(m.ProfileID),
		MemberNumber: m.MemberNumber,
		Type:         string(m.Type),
		Cadence:      string(m.Cadence),
		FeeMinor:     m.Fee.AmountMinor,
		Currency:     m.Fee.Currency,
		Status:       string(m.Status),
		StartDate:    openapi_types.Date{Time: m.StartDate},
		ExpiryDate:   openapi_types.Date{Time: m.ExpiryDate},
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

type EnrollMembershipRequest struct {
	ProfileID  string              `json:"profileId" validate:"required"`
	Type       string              `json:"type" validate:"required,oneof=local national international"`
	Cadence    string              `json:"paymentCadence" validate:"required,oneof=monthly quarterly yearly"`
	FeeMinor   int64               `json:"feeMinor" validate:"gte=0"`
	Currency   string              `json:"currency,omitempty" validate:"omitempty,len=3"`
	Status     string              `json:"status,omitempty" validate:"omitempty,oneof=pending active expired suspended cancelled"`
	StartDate  openapi_types.Date  `json:"startDate" validate:"required"`
	ExpiryDate *openapi_types.Date `json:"expiryDate,omitempty"`
}

type UpdateMembershipRequest struct {
	Type       nullable.Nullable[string]             `json:"type,omitempty"`
	Cadence    nullable.Nullable[string]             `json:"paymentCadence,omitempty"`
	FeeMinor   nullable.Nullable[int64]              `json:"feeMinor,omitempty"`
	Currency   nullable.Nullable[string]             `json:"currency,omitempty"`
	Status     nullable.Nullable[string]             `json:"status,omitempty"`
	StartDate  nullable.Nullable[openapi_types.Date] `json:"startDate,omitempty"`
	ExpiryDate nullable.Nullable[openapi_types.Date] `json:"expiryDate,omitempty"`
}

type ExpireResponse struct {
	Expired int `json:"expired"`
}

// Board positions

type BoardPosition struct {
	ID        string              `json:"id"`
	ProfileID string              `json:"profileId"`
	Title     string              `json:"title"`
	Level     string              `json:"level"`
	IsActive  bool                `json:"isActive"`
	StartDate *openapi_types.Date `json:"startDate"`
	EndDate   *openapi_types.Date `json:"endDate"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

func boardPositionFromDomain(p domain.BoardPosition) BoardPosition {
	return BoardPosition{
		ID:        string(p.ID),
		ProfileID: string(p.ProfileID),
		Title:     p.Title,
		Level:     string(p.Level),
		IsActive:  p.IsActive,
		StartDate: datePtr(p.StartDate),
		EndDate:   datePtr(p.EndDate),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type CreateBoardPositionRequest struct {
	ProfileID string              `json:"profileId" validate:"required"`
	Title     string              `json:"title" validate:"required,max=120"`
	Level     string              `json:"level" validate:"required,oneof=local national international"`
	IsActive  *bool               `json:"isActive,omitempty"`
	StartDate *openapi_types.Date `json:"startDate,omitempty"`
	EndDate   *openapi_types.Date `json:"endDate,omitempty"`
}

type UpdateBoardPositionRequest struct {
	Title     nullable.Nullable[string]             `json:"title,omitempty"`
	Level     nullable.Nullable[string]             `json:"level,omitempty"`
	IsActive  nullable.Nullable[bool]               `json:"isActive,omitempty"`
	StartDate nullable.Nullable[openapi_types.Date] `json:"startDate,omitempty"`
	EndDate   nullable.Nullable[openapi_types.Date] `json:"endDate,omitempty"`
}

// Templates

type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Channel   string    `json:"channel"`
	Subject   *string   `json:"subject"`
	Content   string    `json:"content"`
	Variables []string  `json:"variables"`
	IsActive  bool      `json:"isActive"`
	CreatedBy *string   `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func templateFromDomain(t domain.Template) Template {
	vars := t.Variables
	if vars == nil {
		vars = []string{}
	}
	return Template{
		ID:        string(t.ID),
		Name:      t.Name,
		Channel:   string(t.Channel),
		Subject:   t.Subject,
		Content:   t.Content,
		Variables: vars,
		IsActive:  t.IsActive,
		CreatedBy: idString(t.CreatedBy),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type CreateTemplateRequest struct {
	Name      string   `json:"name" validate:"required"`
	Channel   string   `json:"channel" validate:"required,oneof=email whatsapp"`
	Subject   *string  `json:"subject,omitempty"`
	Content   string   `json:"content" validate:"required"`
	Variables []string `json:"variables,omitempty"`
	IsActive  *bool    `json:"isActive,omitempty"`
}

type UpdateTemplateRequest struct {
	Name      nullable.Nullable[string]   `json:"name,omitempty"`
	Subject   nullable.Nullable[string]   `json:"subject,omitempty"`
	Content   nullable.Nullable[string]   `json:"content,omitempty"`
	Variables nullable.Nullable[[]string] `json:"variables,omitempty"`
	IsActive  nullable.Nullable[bool]     `json:"isActive,omitempty"`
}

type PreviewTemplateRequest struct {
	Variables map[string]string `json:"variables"`
}

type PreviewResponse struct {
	Subject *string  `json:"subject"`
	Content string   `json:"content"`
	Missing []string `json:"missingVariables"`
}

// Messages

type SendMessageRequest struct {
	TemplateID     string            `json:"templateId" validate:"required"`
	RecipientID    *string           `json:"recipientId,omitempty"`
	RecipientEmail *string           `json:"recipientEmail,omitempty" validate:"omitempty,email"`
	RecipientPhone *string           `json:"recipientPhone,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
}

type SendMessageResponse struct {
	Success bool       `json:"success"`
	Log     MessageLog `json:"log"`
}

type MessageLog struct {
	ID                string            `json:"id"`
	TemplateID        *string           `json:"templateId"`
	RecipientID       *string           `json:"recipientId"`
	RecipientEmail    *string           `json:"recipientEmail"`
	RecipientPhone    *string           `json:"recipientPhone"`
	Channel           string            `json:"channel"`
	Subject           *string           `json:"subject"`
	Content           string            `json:"content"`
	VariablesUsed     map[string]string `json:"variablesUsed"`
	Status            string            `json:"status"`
	ErrorMessage      *string           `json:"errorMessage"`
	ProviderMessageID *string           `json:"providerMessageId"`
	SentAt            *time.Time        `json:"sentAt"`
	DeliveredAt       *time.Time        `json:"deliveredAt"`
	CreatedAt         time.Time         `json:"createdAt"`
}

func messageLogFromDomain(l domain.MessageLog) MessageLog {
	vars := l.VariablesUsed
	if vars == nil {
		vars = map[string]string{}
	}
	return MessageLog{
		ID:                string(l.ID),
		TemplateID:        idString(l.TemplateID),
		RecipientID:       idString(l.RecipientID),
		RecipientEmail:    l.RecipientEmail,
		RecipientPhone:    l.RecipientPhone,
		Channel:           string(l.Channel),
		Subject:           l.Subject,
		Content:           l.Content,
		VariablesUsed:     vars,
		Status:            string(l.Status),
		ErrorMessage:      l.ErrorMessage,
		ProviderMessageID: l.ProviderMessageID,
		SentAt:            l.SentAt,
		DeliveredAt:       l.DeliveredAt,
		CreatedAt:         l.CreatedAt,
	}
}

// WhatsAppWebhook is the subset of the gateway's messages.update callback we consume.
type WhatsAppWebhook struct {
	Event string `json:"event"`
	Data  struct {
		KeyID string `json:"keyId"`
		Key   struct {
			ID string `json:"id"`
		} `json:"key"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	} `json:"data"`
}

func (h WhatsAppWebhook) MessageID() string {
	if h.Data.KeyID != "" {
		return h.Data.KeyID
	}
	return h.Data.Key.ID
}

type WebhookResponse struct {
	Applied bool   `json:"applied"`
	Status  string `json:"status,omitempty"`
}

// Settings

type SMTPSettings struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	UseTLS    bool   `json:"useTls"`
	FromEmail string `json:"fromEmail"`
	FromName  string `json:"fromName"`
}

type WhatsAppSettings struct {
	APIURL       string  `json:"apiUrl"`
	APIKey       string  `json:"apiKey"`
	InstanceName string  `json:"instanceName"`
	WebhookURL   *string `json:"webhookUrl,omitempty"`
}

type Settings struct {
	ChapterName string           `json:"chapterName"`
	Email       SMTPSettings     `json:"email"`
	WhatsApp    WhatsAppSettings `json:"whatsapp"`
	UpdatedAt   *time.Time       `json:"updatedAt,omitempty"`
	UpdatedBy   *string          `json:"updatedBy,omitempty"`
}

type TestChannelRequest struct {
	To string `json:"to" validate:"required"`
}

type TestChannelResponse struct {
	Channel           string `json:"channel"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
}

type WhatsAppStatusResponse struct {
	Instance  string `json:"instance"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
}

func settingsFromDomain(s domain.OrganizationSettings) Settings {
	out := Settings{
		ChapterName: s.ChapterName,
		Email: SMTPSettings{
			Host:      s.Email.Host,
			Port:      s.Email.Port,
			Username:  s.Email.Username,
			Password:  s.Email.Password,
			UseTLS:    s.Email.UseTLS,
			FromEmail: s.Email.FromEmail,
			FromName:  s.Email.FromName,
		},
		WhatsApp: WhatsAppSettings{
			APIURL:       s.WhatsApp.APIURL,
			APIKey:       s.WhatsApp.APIKey,
			InstanceName: s.WhatsApp.InstanceName,
			WebhookURL:   s.WhatsApp.WebhookURL,
		},
		UpdatedBy: idString(s.UpdatedBy),
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func (s Settings) toDomain() domain.OrganizationSettings {
	return domain.OrganizationSettings{
		ChapterName: s.ChapterName,
		Email: domain.SMTPConfig{
			Host:      s.Email.Host,
			Port:      s.Email.Port,
			Username:  s.Email.Username,
			Password:  s.Email.Password,
			UseTLS:    s.Email.UseTLS,
			FromEmail: s.Email.FromEmail,
			FromName:  s.Email.FromName,
		},
		WhatsApp: domain.WhatsAppConfig{
			APIURL:       s.WhatsApp.APIURL,
			APIKey:       s.WhatsApp.APIKey,
			InstanceName: s.WhatsApp.InstanceName,
			WebhookURL:   s.WhatsApp.WebhookURL,
		},
	}
}

// Reports

type ExpiringMembership struct {
	MembershipID string             `json:"membershipId"`
	ProfileID    string             `json:"profileId"`
	Name         string             `json:"name"`
	MemberNumber string             `json:"memberNumber"`
	ExpiryDate   openapi_types.Date `json:"expiryDate"`
}

type MembershipSummary struct {
	Total          int                  `json:"total"`
	ByStatus       map[string]int       `json:"byStatus"`
	ByType         map[string]int       `json:"byType"`
	ProfilesByRole map[string]int       `json:"profilesByRole"`
	Expiring       []ExpiringMembership `json:"expiring"`
	WithinDays     int                  `json:"withinDays"`
	GeneratedAt    time.Time            `json:"generatedAt"`
}

func summaryFromReport(r reports.MembershipSummary) MembershipSummary {
	out := MembershipSummary{
		Total:          r.Total,
		ByStatus:       make(map[string]int, len(r.ByStatus)),
		ByType:         make(map[string]int, len(r.ByType)),
		ProfilesByRole: make(map[string]int, len(r.ProfilesByRole)),
		Expiring:       make([]ExpiringMembership, 0, len(r.Expiring)),
		WithinDays:     r.WithinDays,
		GeneratedAt:    r.GeneratedAt,
	}
	for k, v := range r.ByStatus {
		out.ByStatus[string(k)] = v
	}
	for k, v := range r.ByType {
		out.ByType[string(k)] = v
	}
	for k, v := range r.ProfilesByRole {
		out.ProfilesByRole[string(k)] = v
	}
	for _, e := range r.Expiring {
		out.Expiring = append(out.Expiring, ExpiringMembership{
			MembershipID: string(e.MembershipID),
			ProfileID:    string(e.ProfileID),
			Name:         e.Name,
			MemberNumber: e.MemberNumber,
			ExpiryDate:   openapi_types.Date{Time: e.ExpiryDate},
		})
	}
	return out
}

// CRM

type Activity struct {
	ID          string            `json:"id"`
	ProfileID   string            `json:"profileId"`
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ActorID     *string           `json:"actorId"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func activityFromDomain(a domain.Activity) Activity {
	return Activity{
		ID:          string(a.ID),
		ProfileID:   string(a.ProfileID),
		Kind:        string(a.Kind),
		Description: a.Description,
		Metadata:    a.Metadata,
		ActorID:     idString(a.ActorID),
		CreatedAt:   a.CreatedAt,
	}
}

type LogActivityRequest struct {
	Description string `json:"description" validate:"required,max=2000"`
}

type Interaction struct {
	ID         string    `json:"id"`
	ProfileID  string    `json:"profileId"`
	Channel    string    `json:"channel"`
	Summary    string    `json:"summary"`
	OccurredAt time.Time `json:"occurredAt"`
	ActorID    string    `json:"actorId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func interactionFromDomain(i domain.Interaction) Interaction {
	return Interaction{
		ID:         string(i.ID),
		ProfileID:  string(i.ProfileID),
		Channel:    string(i.Channel),
		Summary:    i.Summary,
		OccurredAt: i.OccurredAt,
		ActorID:    string(i.ActorID),
		CreatedAt:  i.CreatedAt,
	}
}

type AddInteractionRequest struct {
	Channel    string     `json:"channel" validate:"required,oneof=call email meeting whatsapp other"`
	Summary    string     `json:"summary" validate:"required"`
	OccurredAt *time.Time `json:"occurredAt,omitempty"`
}

type Note struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	IsPrivate bool      `json:"isPrivate"`
	CreatedAt time.Time `json:"createdAt"`
}

func noteFromDomain(n domain.Note) Note {
	return Note{
		ID:        string(n.ID),
		ProfileID: string(n.ProfileID),
		AuthorID:  string(n.AuthorID),
		Body:      n.Body,
		IsPrivate: n.IsPrivate,
		CreatedAt: n.CreatedAt,
	}
}

type AddNoteRequest struct {
	Body      string `json:"body" validate:"required"`
	IsPrivate bool   `json:"isPrivate"`
}

type Tag struct {
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

func tagFromDomain(t domain.Tag) Tag {
	return Tag{Name: t.Name, Color: t.Color, CreatedAt: t.CreatedAt}
}

type AddTagRequest struct {
	Name  string  `json:"name" validate:"required,max=50"`
	Color *string `json:"color,omitempty"`
}

type FollowUp struct {
	ID          string     `json:"id"`
	ProfileID   string     `json:"profileId"`
	AssigneeID  *string    `json:"assigneeId"`
	Title       string     `json:"title"`
	DueAt       time.Time  `json:"dueAt"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func followUpFromDomain(f domain.FollowUp) FollowUp {
	return FollowUp{
		ID:          string(f.ID),
		ProfileID:   string(f.ProfileID),
		AssigneeID:  idString(f.AssigneeID),
		Title:       f.Title,
		DueAt:       f.DueAt,
		CompletedAt: f.CompletedAt,
		CreatedAt:   f.CreatedAt,
	}
}

type AddFollowUpRequest struct {
	AssigneeID *string   `json:"assigneeId,omitempty"`
	Title      string    `json:"title" validate:"required,max=200"`
	DueAt      time.Time `json:"dueAt" validate:"required"`
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
