package dto

import (
	"time"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

// PhaseCounts counts courses per display phase.
type PhaseCounts struct {
	Planning  int `json:"planning"`
	Upcoming  int `json:"upcoming"`
	Ongoing   int `json:"ongoing"`
	Completed int `json:"completed"`
}

// DashboardResponse is the admin landing page summary.
type DashboardResponse struct {
	Date              string        `json:"date"`
	Courses           PhaseCounts   `json:"courses"`
	PendingApprovals  int           `json:"pending_approvals"`
	SeatsUsed         int           `json:"seats_used"`
	SeatCapacity      int           `json:"seat_capacity"`
	TotalTrainingCost models.Amount `json:"total_training_cost"`
	GeneratedAt       time.Time     `json:"generated_at"`
}
