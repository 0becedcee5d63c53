package model

import "time"

// EventLeadDiscovered is the event_type of every published lead message.
const EventLeadDiscovered = "lead_discovered"

// LeadMessage is the broker payload for one finalized PartnerProfile.
type LeadMessage struct {
	EventType   string         `json:"event_type"`
	Timestamp   time.Time      `json:"timestamp"`
	SourceAgent string         `json:"source_agent"`
	JobID       string         `json:"job_id,omitempty"`
	Market      string         `json:"market"`
	City        string         `json:"city"`
	District    string         `json:"district,omitempty"`
	Partner     PartnerPayload `json:"partner"`
}

// PartnerPayload is the partner section of a LeadMessage.
type PartnerPayload struct {
	EntityID        string        `json:"entity_id"`
	OrgName         string        `json:"org_name"`
	WebsiteURL      string        `json:"website_url"`
	EntityType      string        `json:"entity_type,omitempty"`
	Emails          []string      `json:"emails"`
	Phones          []string      `json:"phones"`
	InternalLinks   []string      `json:"internal_links"`
	ExternalLinks   []string      `json:"external_links"`
	KeyFacts        []string      `json:"key_facts"`
	DecisionMaker   *string       `json:"decision_maker,omitempty"`
	ChannelOfRecord *Channel      `json:"channel_of_record,omitempty"`
	Status          ProfileStatus `json:"status"`
	DraftMessage    *string       `json:"draft_message,omitempty"`
}

// NewLeadMessage freezes p and snapshots it into a message for job.
func NewLeadMessage(job *PipelineJob, p *PartnerProfile, source string, at time.Time) LeadMessage {
	p.Freeze()

	facts := make([]string, len(p.KeyFacts))
	copy(facts, p.KeyFacts)

	msg := LeadMessage{
		EventType:   EventLeadDiscovered,
		Timestamp:   at.UTC(),
		SourceAgent: source,
		Partner: PartnerPayload{
			EntityID:        p.EntityID,
			OrgName:         p.DisplayName,
			WebsiteURL:      p.WebsiteURL,
			EntityType:      p.EntityType,
			Emails:          p.Emails.Values(),
			Phones:          p.Phones.Values(),
			InternalLinks:   p.InternalLinks.Values(),
			ExternalLinks:   p.ExternalLinks.Values(),
			KeyFacts:        facts,
			DecisionMaker:   p.DecisionMaker,
			ChannelOfRecord: p.ChannelOfRecord,
			Status:          p.Status,
			DraftMessage:    p.DraftMessage,
		},
	}
	if job != nil {
		msg.JobID = job.ID
		msg.Market = job.Request.Market
		msg.City = job.Request.City
		msg.District = job.Request.District
	}
	return msg
}
