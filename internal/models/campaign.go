package models

// CampaignMeta is read-only campaign metadata used to enrich aggregates.
// Owned by the campaign management system; never mutated here.
type CampaignMeta struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Platform Platform `json:"platform"`
}
