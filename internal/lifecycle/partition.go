package lifecycle

import "github.com/noah-isme/lnd-admin-api/internal/models"

// Bucket names one enrollment section.
type Bucket string

// Enrollment sections.
const (
	BucketApproved        Bucket = "approved"
	BucketEligiblePending Bucket = "eligible_pending"
	BucketNotEligible     Bucket = "not_eligible"
	BucketRejected        Bucket = "rejected"
	BucketWithdrawn       Bucket = "withdrawn"
	BucketUnknown         Bucket = "unknown"
)

// Sections groups a course roster. Unknown collects pending rows whose eligibility is missing
// or unrecognised so that every enrollment is shown exactly once.
type Sections struct {
	Approved        []models.Enrollment `json:"approved"`
	EligiblePending []models.Enrollment `json:"eligible_pending"`
	NotEligible     []models.Enrollment `json:"not_eligible"`
	Rejected        []models.Enrollment `json:"rejected"`
	Withdrawn       []models.Enrollment `json:"withdrawn"`
	Unknown         []models.Enrollment `json:"unknown"`
}

// Len is the number of enrollments across all sections.
func (s Sections) Len() int {
	return len(s.Approved) + len(s.EligiblePending) + len(s.NotEligible) +
		len(s.Rejected) + len(s.Withdrawn) + len(s.Unknown)
}

// Classify returns the section of a single enrollment. The first matching rule wins.
func Classify(e *models.Enrollment) Bucket {
	switch {
	case e.ApprovalStatus == models.ApprovalApproved:
		return BucketApproved
	case e.ApprovalStatus == models.ApprovalRejected:
		return BucketRejected
	case e.ApprovalStatus == models.ApprovalWithdrawn:
		return BucketWithdrawn
	case e.ApprovalStatus == models.ApprovalPending && e.EligibilityStatus == models.EligibilityEligible:
		return BucketEligiblePending
	case e.EligibilityStatus.IsIneligible():
		return BucketNotEligible
	default:
		return BucketUnknown
	}
}

// Partition splits enrollments into sections keeping input order inside each section.
func Partition(enrollments []models.Enrollment) Sections {
	sections := Sections{
		Approved:        make([]models.Enrollment, 0),
		EligiblePending: make([]models.Enrollment, 0),
		NotEligible:     make([]models.Enrollment, 0),
		Rejected:        make([]models.Enrollment, 0),
		Withdrawn:       make([]models.Enrollment, 0),
		Unknown:         make([]models.Enrollment, 0),
	}
	for i := range enrollments {
		e := enrollments[i]
		switch Classify(&e) {
		case BucketApproved:
			sections.Approved = append(sections.Approved, e)
		case BucketRejected:
			sections.Rejected = append(sections.Rejected, e)
		case BucketWithdrawn:
			sections.Withdrawn = append(sections.Withdrawn, e)
		case BucketEligiblePending:
			sections.EligiblePending = append(sections.EligiblePending, e)
		case BucketNotEligible:
			sections.NotEligible = append(sections.NotEligible, e)
		default:
			sections.Unknown = append(sections.Unknown, e)
		}
	}
	return sections
}
