package lifecycle

import "github.com/noah-isme/lnd-admin-api/internal/models"

// CostSource tells which copy of the mentor and cost data is authoritative.
type CostSource string

// Cost sources.
const (
	CostSourceOfficial CostSource = "official"
	CostSourceDraft    CostSource = "draft"
)

// CostState is the resolved mentor and cost data of a course. It is the only place that
// decides between the draft overlay and the official fields.
type CostState struct {
	Source    CostSource
	Mentors   []models.MentorAssignment
	FoodCost  models.Amount
	OtherCost models.Amount
}

// ResolveCostState picks the overlay for draft courses, falling back per field to the official
// costs and to no mentors. Non-draft courses ignore any leftover overlay.
func ResolveCostState(course *models.Course) CostState {
	if !course.IsDraft() {
		return CostState{
			Source:    CostSourceOfficial,
			Mentors:   course.Mentors,
			FoodCost:  course.FoodCost,
			OtherCost: course.OtherCost,
		}
	}

	state := CostState{
		Source:    CostSourceDraft,
		Mentors:   []models.MentorAssignment{},
		FoodCost:  course.FoodCost,
		OtherCost: course.OtherCost,
	}
	if course.Draft == nil {
		return state
	}
	if course.Draft.MentorAssignments != nil {
		state.Mentors = course.Draft.MentorAssignments
	}
	if course.Draft.FoodCost != nil {
		state.FoodCost = *course.Draft.FoodCost
	}
	if course.Draft.OtherCost != nil {
		state.OtherCost = *course.Draft.OtherCost
	}
	return state
}

// MentorCost sums amount paid over the authoritative mentors.
func (s CostState) MentorCost() models.Amount {
	total := models.ZeroAmount
	for _, m := range s.Mentors {
		total = total.Add(m.AmountPaid)
	}
	return total
}

// TrainingCost is mentor cost plus food and other costs.
func (s CostState) TrainingCost() models.Amount {
	return s.MentorCost().Add(s.FoodCost).Add(s.OtherCost)
}

// DisplayMentors returns the mentors to show. Draft entries get IsDraft and a synthetic id;
// official entries are returned as stored.
func DisplayMentors(course *models.Course) []models.MentorAssignment {
	state := ResolveCostState(course)
	if state.Source == CostSourceOfficial {
		if state.Mentors == nil {
			return []models.MentorAssignment{}
		}
		return state.Mentors
	}

	counts := make(map[string]int, len(state.Mentors))
	for _, m := range state.Mentors {
		counts[m.MentorID]++
	}
	out := make([]models.MentorAssignment, 0, len(state.Mentors))
	for i, m := range state.Mentors {
		m.IsDraft = true
		m.CourseID = course.ID
		m.ID = SyntheticID(m.MentorID, i, counts[m.MentorID] > 1)
		out = append(out, m)
	}
	return out
}

// TotalMentorCost sums mentor payments from whichever copy is authoritative, never both.
func TotalMentorCost(course *models.Course) models.Amount {
	return ResolveCostState(course).MentorCost()
}

// TotalTrainingCost is the mentor cost plus the effective food and other costs.
func TotalTrainingCost(course *models.Course) models.Amount {
	return ResolveCostState(course).TrainingCost()
}

// CostSummary is the cost breakdown returned to clients.
type CostSummary struct {
	Source            CostSource                `json:"source"`
	Mentors           []models.MentorAssignment `json:"mentors"`
	TotalMentorCost   models.Amount             `json:"total_mentor_cost"`
	FoodCost          models.Amount             `json:"food_cost"`
	OtherCost         models.Amount             `json:"other_cost"`
	TotalTrainingCost models.Amount             `json:"total_training_cost"`
}

// Summarize builds the cost breakdown of a course.
func Summarize(course *models.Course) CostSummary {
	state := ResolveCostState(course)
	return CostSummary{
		Source:            state.Source,
		Mentors:           DisplayMentors(course),
		TotalMentorCost:   state.MentorCost(),
		FoodCost:          state.FoodCost,
		OtherCost:         state.OtherCost,
		TotalTrainingCost: state.TrainingCost(),
	}
}
