package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/structured"
)

// MaxDraftChars caps an outreach draft.
const MaxDraftChars = 500

// DraftReply is the structured extraction target for drafting.
type DraftReply struct {
	DraftMessage *string `json:"draft_message" jsonschema:"the outreach message, at most 500 characters"`
}

// Validate nulls an empty draft.
func (d *DraftReply) Validate() []string {
	if d.DraftMessage != nil && strings.TrimSpace(*d.DraftMessage) == "" {
		d.DraftMessage = nil
	}
	return nil
}

// draftAll writes an outreach draft for every profile. Drafting never fails:
// when the service is unavailable the template draft is used.
func (r *Runner) draftAll(ctx context.Context, job *model.PipelineJob, profiles []*model.PartnerProfile) {
	sem := semaphore.NewWeighted(int64(r.opts.Concurrency))
	for _, p := range profiles {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func() {
			defer sem.Release(1)
			r.draftProfile(ctx, job.Request, p)
		}()
	}
	_ = sem.Acquire(context.WithoutCancel(ctx), int64(r.opts.Concurrency))

	// Profiles skipped by the deadline keep the template.
	for _, p := range profiles {
		if p.DraftMessage == nil {
			p.SetDraftMessage(TemplateDraft(p, job.Request))
		}
	}
}

func (r *Runner) draftProfile(ctx context.Context, req model.LeadRequest, p *model.PartnerProfile) {
	var err error
	defer recoverTask(&err, "draft", p.EntityID)

	msg := ""
	if r.deps.Adapter != nil {
		var reply DraftReply
		reply, err = structured.Extract[DraftReply](ctx, r.deps.Adapter, structured.Request{
			Instructions:  draftInstructions(req, p),
			Content:       profileBrief(p),
			FieldScrapers: []string{"draft_message"},
		})
		structured.Validate(&reply)
		if err != nil {
			zap.L().Debug("pipeline: draft extraction failed, using template",
				zap.String("entity_id", p.EntityID),
				zap.Error(err),
			)
		} else if reply.DraftMessage != nil {
			msg = *reply.DraftMessage
		}
	}
	if msg == "" {
		msg = TemplateDraft(p, req)
	}
	p.SetDraftMessage(ClampDraft(msg, MaxDraftChars))
}

func draftInstructions(req model.LeadRequest, p *model.PartnerProfile) string {
	return "Write a short, friendly first outreach message (at most 500 characters) to " +
		greetingName(p) + " at " + p.DisplayName + ", proposing a referral partnership in " +
		req.Market + " for " + req.Location() + ". Mention one relevant fact about them when known. " +
		"No placeholders, no subject line."
}

func profileBrief(p *model.PartnerProfile) string {
	var sb strings.Builder
	sb.WriteString("Organization: " + p.DisplayName + "\n")
	sb.WriteString("Website: " + p.WebsiteURL + "\n")
	if p.EntityType != "" {
		sb.WriteString("Type: " + p.EntityType + "\n")
	}
	if p.DecisionMaker != nil {
		sb.WriteString("Decision maker: " + *p.DecisionMaker + "\n")
	}
	for _, f := range p.KeyFacts {
		sb.WriteString("- " + f + "\n")
	}
	return sb.String()
}

// greetingName is the decision maker's name, or the organization's.
func greetingName(p *model.PartnerProfile) string {
	if p.DecisionMaker != nil && *p.DecisionMaker != "" {
		return *p.DecisionMaker
	}
	return p.DisplayName
}

// TemplateDraft is the draft used when the service gives none.
func TemplateDraft(p *model.PartnerProfile, req model.LeadRequest) string {
	// A Caser keeps state, so one is made per call.
	city := cases.Title(language.English).String(req.City)
	return "Hi " + greetingName(p) + ", I work with " + strings.ToLower(req.Market) +
		" agencies in " + city +
		". Would love to explore a partnership. Open to a quick chat?"
}

// ClampDraft cuts msg to at most limit runes, preferring a word boundary.
func ClampDraft(msg string, limit int) string {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) <= limit {
		return msg
	}
	runes := []rune(msg)[:limit]
	cut := string(runes)
	if i := strings.LastIndexAny(cut, " \n"); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-")
}
