// Package personalize renders templates with member and context variables.
package personalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const DefaultOrganizationName = "CCOS Charity Guild"

// Built-in variable names.
const (
	VarMemberName       = "member_name"
	VarFirstName        = "first_name"
	VarMemberTier       = "member_tier"
	VarOrganizationName = "organization_name"
	VarTierMessage      = "tier_message"
)

var tierMessages = map[models.Tier]string{
	models.TierFriend:    "As a Friend of the Guild, your support keeps our doors open.",
	models.TierSupporter: "As a Supporter, you help us plan programs months ahead.",
	models.TierAdvocate:  "As an Advocate, you are among the members who carry our mission forward.",
	models.TierPatron:    "As a Patron, your leadership giving funds entire programs.",
	models.TierChampion:  "As a Champion, you are one of the pillars of this community.",
	models.TierBronze:    "Thank you for being a Bronze member.",
	models.TierSilver:    "Your Silver membership makes a real difference.",
	models.TierGold:      "As a Gold member, you are one of our most valued supporters.",
	models.TierPlatinum:  "As a Platinum member, your generosity shapes everything we do.",
}

// TierMessage returns the fixed tier blurb, or "" for tiers without one.
func TierMessage(t models.Tier) string {
	return tierMessages[t]
}

// TemplateSource is satisfied by *templates.Store.
type TemplateSource interface {
	Get(id string) (models.CommunicationTemplate, bool)
}

// Rendered is a template after substitution, with the channel it targets.
type Rendered struct {
	TemplateID string         `json:"templateId"`
	Channel    models.Channel `json:"channel"`
	Subject    string         `json:"subject"`
	Content    string         `json:"content"`
}

type Personalizer struct {
	templates    TemplateSource
	organization string
}

func New(templates TemplateSource, organization string) *Personalizer {
	if organization == "" {
		organization = DefaultOrganizationName
	}
	return &Personalizer{templates: templates, organization: organization}
}

// Personalize renders templateID for member. A missing template yields an
// empty Rendered and false; callers decide whether that is fatal.
func (p *Personalizer) Personalize(templateID string, member models.Member, context map[string]interface{}) (Rendered, bool) {
	tpl, ok := p.templates.Get(templateID)
	if !ok {
		return Rendered{}, false
	}

	vars := p.Variables(member, context)
	return Rendered{
		TemplateID: tpl.ID,
		Channel:    tpl.Type,
		Subject:    Render(tpl.Subject, vars),
		Content:    Render(tpl.Content, vars),
	}, true
}

// Variables builds the substitution map. Context entries win over built-ins.
func (p *Personalizer) Variables(member models.Member, context map[string]interface{}) map[string]string {
	vars := map[string]string{
		VarMemberName:       member.FullName(),
		VarFirstName:        member.FirstName,
		VarMemberTier:       string(member.Tier),
		VarOrganizationName: p.organization,
		VarTierMessage:      TierMessage(member.Tier),
	}
	for k, v := range context {
		vars[k] = stringify(v)
	}
	return vars
}

// Render replaces every {{key}} with a known key in a single pass. Unknown
// placeholders are left as they are, and substituted values are never
// rescanned.
func Render(text string, vars map[string]string) string {
	if text == "" || len(vars) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format("Monday, January 2, 2006 3:04 PM")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
