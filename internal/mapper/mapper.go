// Package mapper converts domain models to API response DTOs. Weighted deal
// value is computed here, at read time, from the current stage's win
// probability, so it never drifts from the stored fields.
package mapper

import (
	"math"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
)

// ToUserResponse maps a user to its API representation
func ToUserResponse(u *domain.User) *domain.UserResponse {
	if u == nil {
		return nil
	}
	return &domain.UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ToUserResponses maps a slice of users
func ToUserResponses(users []domain.User) []domain.UserResponse {
	result := make([]domain.UserResponse, len(users))
	for i := range users {
		result[i] = *ToUserResponse(&users[i])
	}
	return result
}

// ToOrganizationResponse maps an organization to its API representation
func ToOrganizationResponse(o *domain.Organization) *domain.OrganizationResponse {
	if o == nil {
		return nil
	}
	return &domain.OrganizationResponse{
		ID:        o.ID,
		Name:      o.Name,
		Industry:  o.Industry,
		Website:   o.Website,
		Address:   o.Address,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// ToOrganizationResponses maps a slice of organizations
func ToOrganizationResponses(orgs []domain.Organization) []domain.OrganizationResponse {
	result := make([]domain.OrganizationResponse, len(orgs))
	for i := range orgs {
		result[i] = *ToOrganizationResponse(&orgs[i])
	}
	return result
}

// ToContactResponse maps a contact to its API representation
func ToContactResponse(c *domain.Contact) *domain.ContactResponse {
	if c == nil {
		return nil
	}
	return &domain.ContactResponse{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Organization: ToOrganizationResponse(c.Organization),
		CreatedBy:    ToUserResponse(c.CreatedBy),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ToContactResponses maps a slice of contacts
func ToContactResponses(contacts []domain.Contact) []domain.ContactResponse {
	result := make([]domain.ContactResponse, len(contacts))
	for i := range contacts {
		result[i] = *ToContactResponse(&contacts[i])
	}
	return result
}

// ToStageResponse maps a stage to its API representation
func ToStageResponse(st *domain.Stage) *domain.StageResponse {
	if st == nil {
		return nil
	}
	return &domain.StageResponse{
		ID:             st.ID,
		PipelineID:     st.PipelineID,
		Name:           st.Name,
		Position:       st.Position,
		WinProbability: st.WinProbability,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
}

// ToStageResponses maps a slice of stages
func ToStageResponses(stages []domain.Stage) []domain.StageResponse {
	result := make([]domain.StageResponse, len(stages))
	for i := range stages {
		result[i] = *ToStageResponse(&stages[i])
	}
	return result
}

// ToPipelineResponse maps a pipeline with its stages
func ToPipelineResponse(p *domain.Pipeline) *domain.PipelineResponse {
	if p == nil {
		return nil
	}
	return &domain.PipelineResponse{
		ID:        p.ID,
		Name:      p.Name,
		IsDefault: p.IsDefault,
		CreatedBy: ToUserResponse(p.CreatedBy),
		Stages:    ToStageResponses(p.Stages),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ToPipelineResponses maps a slice of pipelines
func ToPipelineResponses(pipelines []domain.Pipeline) []domain.PipelineResponse {
	result := make([]domain.PipelineResponse, len(pipelines))
	for i := range pipelines {
		result[i] = *ToPipelineResponse(&pipelines[i])
	}
	return result
}

// WeightedValue computes a deal's probability-adjusted value, rounded to
// two decimals. Won deals weigh fully, lost deals weigh nothing.
func WeightedValue(d *domain.Deal) float64 {
	switch d.Status {
	case domain.DealStatusWon:
		return d.Value
	case domain.DealStatusLost:
		return 0
	}
	if d.Stage == nil {
		return 0
	}
	return math.Round(d.Value*d.Stage.WinProbability*100) / 100
}

// ToDealResponse maps a deal to its API representation
func ToDealResponse(d *domain.Deal) *domain.DealResponse {
	if d == nil {
		return nil
	}
	return &domain.DealResponse{
		ID:                d.ID,
		Title:             d.Title,
		Contact:           ToContactResponse(d.Contact),
		ContactID:         d.ContactID,
		Value:             d.Value,
		WeightedValue:     WeightedValue(d),
		Status:            string(d.Status),
		ExpectedCloseDate: d.ExpectedCloseDate,
		PipelineID:        d.PipelineID,
		Stage:             ToStageResponse(d.Stage),
		StageID:           d.StageID,
		AssignedTo:        ToUserResponse(d.AssignedTo),
		AssignedToID:      d.AssignedToID,
		ClosedAt:          d.ClosedAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// ToDealResponses maps a slice of deals
func ToDealResponses(deals []domain.Deal) []domain.DealResponse {
	result := make([]domain.DealResponse, len(deals))
	for i := range deals {
		result[i] = *ToDealResponse(&deals[i])
	}
	return result
}

// ToDealStageHistoryResponse maps one stage history entry
func ToDealStageHistoryResponse(h *domain.DealStageHistory) *domain.DealStageHistoryResponse {
	if h == nil {
		return nil
	}
	return &domain.DealStageHistoryResponse{
		ID:          h.ID,
		DealID:      h.DealID,
		FromStageID: h.FromStageID,
		ToStageID:   h.ToStageID,
		Backward:    h.Backward,
		ChangedByID: h.ChangedByID,
		Notes:       h.Notes,
		ChangedAt:   h.ChangedAt,
	}
}

// ToDealStageHistoryResponses maps a slice of history entries
func ToDealStageHistoryResponses(entries []domain.DealStageHistory) []domain.DealStageHistoryResponse {
	result := make([]domain.DealStageHistoryResponse, len(entries))
	for i := range entries {
		result[i] = *ToDealStageHistoryResponse(&entries[i])
	}
	return result
}

// ToPipelineBoard assembles the board view: one column per stage in
// position order, each with its open deals and value totals
func ToPipelineBoard(pipeline *domain.Pipeline, stages []domain.Stage, dealsByStage map[uuid.UUID][]domain.Deal) *domain.PipelineBoardResponse {
	board := &domain.PipelineBoardResponse{
		Pipeline: *ToPipelineResponse(pipeline),
		Columns:  make([]domain.PipelineBoardColumn, 0, len(stages)),
	}

	for i := range stages {
		stage := stages[i]
		deals := dealsByStage[stage.ID]

		column := domain.PipelineBoardColumn{
			Stage: *ToStageResponse(&stage),
			Deals: make([]domain.DealResponse, 0, len(deals)),
		}
		for j := range deals {
			resp := ToDealResponse(&deals[j])
			column.Deals = append(column.Deals, *resp)
			column.TotalValue += deals[j].Value
			column.WeightedValue += resp.WeightedValue
		}
		board.Columns = append(board.Columns, column)
	}

	return board
}

// ToActivityResponse maps an activity to its API representation
func ToActivityResponse(a *domain.Activity) *domain.ActivityResponse {
	if a == nil {
		return nil
	}
	return &domain.ActivityResponse{
		ID:          a.ID,
		DealID:      a.DealID,
		Type:        string(a.Type),
		Subject:     a.Subject,
		ScheduledAt: a.ScheduledAt,
		CompletedAt: a.CompletedAt,
		Notes:       a.Notes,
		CreatedBy:   ToUserResponse(a.CreatedBy),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// ToActivityResponses maps a slice of activities
func ToActivityResponses(activities []domain.Activity) []domain.ActivityResponse {
	result := make([]domain.ActivityResponse, len(activities))
	for i := range activities {
		result[i] = *ToActivityResponse(&activities[i])
	}
	return result
}

// ToNoteResponse maps a note to its API representation
func ToNoteResponse(n *domain.Note) *domain.NoteResponse {
	if n == nil {
		return nil
	}
	return &domain.NoteResponse{
		ID:        n.ID,
		DealID:    n.DealID,
		Content:   n.Content,
		CreatedBy: ToUserResponse(n.CreatedBy),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// ToNoteResponses maps a slice of notes
func ToNoteResponses(notes []domain.Note) []domain.NoteResponse {
	result := make([]domain.NoteResponse, len(notes))
	for i := range notes {
		result[i] = *ToNoteResponse(&notes[i])
	}
	return result
}

// ToAuditRecordResponse maps an audit record
func ToAuditRecordResponse(r *domain.AuditRecord) *domain.AuditRecordResponse {
	if r == nil {
		return nil
	}
	return &domain.AuditRecordResponse{
		ID:         r.ID,
		ActorID:    r.ActorID,
		ActorName:  r.ActorName,
		Action:     string(r.Action),
		EntityKind: string(r.EntityKind),
		EntityID:   r.EntityID,
		Changes:    r.Changes,
		RecordedAt: r.RecordedAt,
	}
}

// ToAuditRecordResponses maps a slice of audit records
func ToAuditRecordResponses(records []domain.AuditRecord) []domain.AuditRecordResponse {
	result := make([]domain.AuditRecordResponse, len(records))
	for i := range records {
		result[i] = *ToAuditRecordResponse(&records[i])
	}
	return result
}

// ToNotificationResponse maps a notification
func ToNotificationResponse(n *domain.Notification) *domain.NotificationResponse {
	if n == nil {
		return nil
	}
	return &domain.NotificationResponse{
		ID:         n.ID,
		Type:       string(n.Type),
		Title:      n.Title,
		Message:    n.Message,
		Read:       n.Read,
		ReadAt:     n.ReadAt,
		EntityKind: string(n.EntityKind),
		EntityID:   n.EntityID,
		CreatedAt:  n.CreatedAt,
	}
}

// ToNotificationResponses maps a slice of notifications
func ToNotificationResponses(notifications []domain.Notification) []domain.NotificationResponse {
	result := make([]domain.NotificationResponse, len(notifications))
	for i := range notifications {
		result[i] = *ToNotificationResponse(&notifications[i])
	}
	return result
}
