package templates

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/app/patch"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	"github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

const maxNameLen = 120

type CreateInput struct {
	Name    string
	Channel domain.Channel
	Subject *string
	Content string
	// Variables defaults to every placeholder found in content and subject.
	Variables []string
	// IsActive defaults to true.
	IsActive *bool
}

type UpdateInput struct {
	Name      patch.Optional[string]
	Subject   patch.Optional[string]
	Content   patch.Optional[string]
	Variables patch.Optional[[]string]
	IsActive  patch.Optional[bool]
}

// Rendered is a template with variables substituted.
type Rendered struct {
	Subject *string
	Content string
	// Missing lists declared variables that had no value; they render as empty text.
	Missing []string
}

type Service struct {
	repo  templaterepo.Repository
	logs  messagelogrepo.Repository
	guard *access.Guard
	clk   clockport.Clock
	log   *zap.Logger

	newID func() domain.TemplateID
}

func NewService(repo templaterepo.Repository, logs messagelogrepo.Repository, guard *access.Guard, clk clockport.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:  repo,
		logs:  logs,
		guard: guard,
		clk:   clk,
		log:   log,
		newID: func() domain.TemplateID {
			return domain.TemplateID(uuid.NewString())
		},
	}
}

func (s *Service) Create(ctx context.Context, actor domain.IdentityID, in CreateInput) (domain.Template, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMessageTemplates, authz.ActionCreate, ""); err != nil {
		return domain.Template{}, err
	}
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return domain.Template{}, err
	}
	subject := trimSubject(in.Subject)
	vars := in.Variables
	if vars == nil {
		vars = derivedVariables(in.Content, subject)
	}
	if problems := domain.ValidateTemplate(in.Channel, subject, in.Content, vars); problems != nil {
		return domain.Template{}, validation(problems)
	}

	now := s.clk.Now()
	creator := actor
	t := domain.Template{
		ID:        s.newID(),
		Name:      name,
		Channel:   in.Channel,
		Subject:   subject,
		Content:   in.Content,
		Variables: append([]string{}, vars...),
		IsActive:  in.IsActive == nil || *in.IsActive,
		CreatedBy: &creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return domain.Template{}, mapRepoErr(err)
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, actor domain.IdentityID, id domain.TemplateID) (domain.Template, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMessageTemplates, authz.ActionRead, ""); err != nil {
		return domain.Template{}, err
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Template{}, mapRepoErr(err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, actor domain.IdentityID, activeOnly bool) ([]domain.Template, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMessageTemplates, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) Update(ctx context.Context, actor domain.IdentityID, id domain.TemplateID, in UpdateInput) (domain.Template, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMessageTemplates, authz.ActionUpdate, ""); err != nil {
		return domain.Template{}, err
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Template{}, mapRepoErr(err)
	}

	if in.Name.IsSpecified() {
		name := strings.TrimSpace(in.Name.Value())
		if in.Name.IsNull() {
			name = ""
		}
		if err := validateName(name); err != nil {
			return domain.Template{}, err
		}
		t.Name = name
	}
	if in.Subject.IsSpecified() {
		if in.Subject.IsNull() {
			t.Subject = nil
		} else {
			v := in.Subject.Value()
			t.Subject = trimSubject(&v)
		}
	}
	contentChanged := false
	if in.Content.IsSpecified() {
		if in.Content.IsNull() {
			return domain.Template{}, apperr.Field("content", "cannot be null")
		}
		t.Content = in.Content.Value()
		contentChanged = true
	}
	switch {
	case in.Variables.IsSpecified() && !in.Variables.IsNull():
		t.Variables = append([]string{}, in.Variables.Value()...)
	case in.Variables.IsSpecified() || contentChanged || in.Subject.IsSpecified():
		t.Variables = derivedVariables(t.Content, t.Subject)
	}
	if in.IsActive.IsSpecified() && !in.IsActive.IsNull() {
		t.IsActive = in.IsActive.Value()
	}
	if problems := domain.ValidateTemplate(t.Channel, t.Subject, t.Content, t.Variables); problems != nil {
		return domain.Template{}, validation(problems)
	}

	t.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		return domain.Template{}, mapRepoErr(err)
	}
	return t, nil
}

// Delete removes a template. Message logs rendered from it keep their content with the
// template reference cleared.
func (s *Service) Delete(ctx context.Context, actor domain.IdentityID, id domain.TemplateID) error {
	if err := s.guard.Check(ctx, actor, authz.TableMessageTemplates, authz.ActionDelete, ""); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	if s.logs != nil {
		if err := s.logs.DetachTemplate(ctx, id); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.log.Info("template deleted", zap.String("template", string(id)), zap.String("actor", string(actor)))
	return nil
}

// Preview renders a template the way a send would, without sending or logging.
func (s *Service) Preview(ctx context.Context, actor domain.IdentityID, id domain.TemplateID, values map[string]string) (Rendered, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return Rendered{}, err
	}
	return Render(t, values), nil
}

// Render substitutes values into t. Values are HTML-escaped for email, whose content is HTML;
// WhatsApp text is substituted verbatim.
func Render(t domain.Template, values map[string]string) Rendered {
	var escape func(string) string
	if t.Channel == domain.ChannelEmail {
		escape = html.EscapeString
	}
	out := Rendered{
		Content: domain.Render(t.Content, values, escape),
		Missing: t.MissingVariables(values),
	}
	if t.Subject != nil {
		// Subjects are plain text headers.
		subj := domain.Render(*t.Subject, values, nil)
		out.Subject = &subj
	}
	return out
}

func derivedVariables(content string, subject *string) []string {
	vars, _ := domain.Placeholders(content)
	if subject != nil {
		more, _ := domain.Placeholders(*subject)
		seen := map[string]bool{}
		for _, v := range vars {
			seen[v] = true
		}
		for _, v := range more {
			if !seen[v] {
				vars = append(vars, v)
			}
		}
	}
	if vars == nil {
		vars = []string{}
	}
	return vars
}

func trimSubject(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func validateName(name string) error {
	if name == "" {
		return apperr.Field("name", "must be non-empty")
	}
	if len([]rune(name)) > maxNameLen {
		return apperr.Field("name", "must be at most 120 characters")
	}
	return nil
}

func validation(problems map[string]string) *apperr.Error {
	details := make(map[string]any, len(problems))
	for k, v := range problems {
		details[k] = v
	}
	return apperr.Validation("invalid template", details)
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, templaterepo.ErrNotFound):
		return apperr.NotFound("TEMPLATE_NOT_FOUND", "template not found")
	case errors.Is(err, templaterepo.ErrNameTaken):
		return apperr.Conflict("TEMPLATE_NAME_IN_USE", "a template with this name already exists for the channel")
	}
	return err
}
