package mapper_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDeal(value, probability float64) *domain.Deal {
	stageID := uuid.New()
	return &domain.Deal{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		Title:     "Deal",
		Value:     value,
		Status:    domain.DealStatusOpen,
		StageID:   stageID,
		Stage: &domain.Stage{
			BaseModel:      domain.BaseModel{ID: stageID},
			WinProbability: probability,
		},
	}
}

func TestWeightedValue(t *testing.T) {
	t.Run("open deal scales by stage probability", func(t *testing.T) {
		assert.Equal(t, 50000.0, mapper.WeightedValue(openDeal(100000, 0.5)))
	})

	t.Run("result is rounded to cents", func(t *testing.T) {
		assert.Equal(t, 33.33, mapper.WeightedValue(openDeal(99.99, 1.0/3.0)))
	})

	t.Run("won deal counts at face value regardless of stage", func(t *testing.T) {
		deal := openDeal(100000, 0.1)
		deal.Status = domain.DealStatusWon
		assert.Equal(t, 100000.0, mapper.WeightedValue(deal))
	})

	t.Run("lost deal counts as zero", func(t *testing.T) {
		deal := openDeal(100000, 0.9)
		deal.Status = domain.DealStatusLost
		assert.Zero(t, mapper.WeightedValue(deal))
	})

	t.Run("open deal without a loaded stage counts as zero", func(t *testing.T) {
		deal := openDeal(100000, 0.5)
		deal.Stage = nil
		assert.Zero(t, mapper.WeightedValue(deal))
	})
}

func TestToDealResponse(t *testing.T) {
	deal := openDeal(100000, 0.5)
	deal.Contact = &domain.Contact{BaseModel: domain.BaseModel{ID: uuid.New()}, Name: "Contact"}
	deal.AssignedTo = &domain.User{BaseModel: domain.BaseModel{ID: uuid.New()}, Name: "Agent"}

	resp := mapper.ToDealResponse(deal)
	require.NotNil(t, resp)
	assert.Equal(t, deal.ID, resp.ID)
	assert.Equal(t, 50000.0, resp.WeightedValue)
	require.NotNil(t, resp.Contact)
	assert.Equal(t, "Contact", resp.Contact.Name)
	require.NotNil(t, resp.AssignedTo)
	assert.Equal(t, "Agent", resp.AssignedTo.Name)

	t.Run("nil deal maps to nil", func(t *testing.T) {
		assert.Nil(t, mapper.ToDealResponse(nil))
	})
}

func TestToPipelineBoard(t *testing.T) {
	user := &domain.User{BaseModel: domain.BaseModel{ID: uuid.New()}, Name: "Owner"}
	pipeline := &domain.Pipeline{
		BaseModel:   domain.BaseModel{ID: uuid.New()},
		Name:        "Sales",
		CreatedByID: user.ID,
		CreatedBy:   user,
	}
	stages := []domain.Stage{
		{BaseModel: domain.BaseModel{ID: uuid.New()}, PipelineID: pipeline.ID, Name: "Lead", Position: 0, WinProbability: 0.1},
		{BaseModel: domain.BaseModel{ID: uuid.New()}, PipelineID: pipeline.ID, Name: "Closing", Position: 1, WinProbability: 0.8},
	}

	mkDeal := func(stage *domain.Stage, value float64) domain.Deal {
		return domain.Deal{
			BaseModel: domain.BaseModel{ID: uuid.New()},
			Title:     "Board Deal",
			Value:     value,
			Status:    domain.DealStatusOpen,
			StageID:   stage.ID,
			Stage:     stage,
		}
	}

	dealsByStage := map[uuid.UUID][]domain.Deal{
		stages[0].ID: {mkDeal(&stages[0], 100000), mkDeal(&stages[0], 50000)},
		stages[1].ID: {mkDeal(&stages[1], 200000)},
	}

	board := mapper.ToPipelineBoard(pipeline, stages, dealsByStage)
	require.NotNil(t, board)
	assert.Equal(t, pipeline.ID, board.Pipeline.ID)
	require.Len(t, board.Columns, 2)

	lead := board.Columns[0]
	assert.Equal(t, "Lead", lead.Stage.Name)
	require.Len(t, lead.Deals, 2)
	assert.Equal(t, 150000.0, lead.TotalValue)
	assert.Equal(t, 15000.0, lead.WeightedValue)

	closing := board.Columns[1]
	require.Len(t, closing.Deals, 1)
	assert.Equal(t, 200000.0, closing.TotalValue)
	assert.Equal(t, 160000.0, closing.WeightedValue)

	t.Run("stage without deals yields an empty column", func(t *testing.T) {
		board := mapper.ToPipelineBoard(pipeline, stages, nil)
		require.Len(t, board.Columns, 2)
		assert.Empty(t, board.Columns[0].Deals)
		assert.Zero(t, board.Columns[0].TotalValue)
	})
}
