package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Channel is the delivery channel of a template and of the messages rendered from it.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelWhatsApp
}

// Template is a message template with named {{ placeholders }}.
type Template struct {
	ID      TemplateID
	Name    string
	Channel Channel
	// Subject is only meaningful for email templates; nil otherwise.
	Subject   *string
	Content   string
	Variables []string
	IsActive  bool
	CreatedBy *IdentityID

	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	placeholderPattern  = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
	variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidVariableName reports whether name is usable as a placeholder.
func ValidVariableName(name string) bool {
	return variableNamePattern.MatchString(name)
}

// Placeholders returns the distinct placeholder names in text in first-seen order.
// It fails on the first placeholder whose name is not a valid variable name.
func Placeholders(text string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if !ValidVariableName(name) {
			return nil, fmt.Errorf("invalid placeholder %q", m[0])
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// ValidateTemplate checks a template definition and returns per-field problems (nil when valid).
func ValidateTemplate(channel Channel, subject *string, content string, variables []string) map[string]string {
	problems := map[string]string{}
	if !channel.Valid() {
		problems["channel"] = "must be one of: email, whatsapp"
	}
	if channel != ChannelEmail && subject != nil {
		problems["subject"] = "only email templates may have a subject"
	}
	if strings.TrimSpace(content) == "" {
		problems["content"] = "must be non-empty"
	}

	available := map[string]bool{}
	names, err := Placeholders(content)
	if err != nil {
		problems["content"] = err.Error()
	}
	for _, n := range names {
		available[n] = true
	}
	if subject != nil {
		subjNames, err := Placeholders(*subject)
		if err != nil {
			problems["subject"] = err.Error()
		}
		for _, n := range subjNames {
			available[n] = true
		}
	}

	seen := map[string]bool{}
	for _, v := range variables {
		switch {
		case !ValidVariableName(v):
			problems["variables"] = fmt.Sprintf("invalid variable name %q", v)
		case seen[v]:
			problems["variables"] = fmt.Sprintf("duplicate variable %q", v)
		case !available[v]:
			problems["variables"] = fmt.Sprintf("variable %q does not appear in the template", v)
		}
		seen[v] = true
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}

// Render substitutes placeholders in text. Missing values render as empty strings.
// escape, when non-nil, is applied to every substituted value (e.g. HTML escaping for email).
func Render(text string, values map[string]string, escape func(string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := placeholderPattern.FindStringSubmatch(m)
		v := values[sub[1]]
		if escape != nil {
			v = escape(v)
		}
		return v
	})
}

// MissingVariables lists declared variables absent from values.
func (t Template) MissingVariables(values map[string]string) []string {
	var out []string
	for _, v := range t.Variables {
		if _, ok := values[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
