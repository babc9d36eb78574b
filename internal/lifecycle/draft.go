package lifecycle

import (
	"strconv"
	"strings"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

const draftIDPrefix = "draft-"

// EmptyOverlay is the overlay assumed when a draft course has none stored yet.
func EmptyOverlay() models.DraftOverlay {
	return models.DraftOverlay{MentorAssignments: []models.MentorAssignment{}}
}

// SyntheticID builds the display id of a draft assignment. The index form is only used when
// the mentor id appears more than once.
func SyntheticID(mentorID string, index int, withIndex bool) string {
	if withIndex {
		return draftIDPrefix + mentorID + "-" + strconv.Itoa(index)
	}
	return draftIDPrefix + mentorID
}

// IsSyntheticID reports whether ref looks like a draft display id.
func IsSyntheticID(ref string) bool {
	return strings.HasPrefix(ref, draftIDPrefix)
}

// ResolveDraftRef maps a bare mentor id or a synthetic id back to the mentor id it refers to.
// Mentor ids may contain hyphens, so the suffix is matched against the overlay rather than
// split.
func ResolveDraftRef(overlay models.DraftOverlay, ref string) (string, bool) {
	for _, a := range overlay.MentorAssignments {
		if a.MentorID == ref {
			return ref, true
		}
	}
	if !IsSyntheticID(ref) {
		return "", false
	}
	rest := strings.TrimPrefix(ref, draftIDPrefix)
	for _, a := range overlay.MentorAssignments {
		if a.MentorID == rest {
			return a.MentorID, true
		}
	}
	for i, a := range overlay.MentorAssignments {
		if rest == a.MentorID+"-"+strconv.Itoa(i) {
			return a.MentorID, true
		}
	}
	return "", false
}

// FindAssignment returns the overlay entry for a mentor.
func FindAssignment(overlay models.DraftOverlay, mentorID string) (models.MentorAssignment, bool) {
	for _, a := range overlay.MentorAssignments {
		if a.MentorID == mentorID {
			return a, true
		}
	}
	return models.MentorAssignment{}, false
}

// UpsertAssignment replaces the entry with the same mentor id or appends a new one. Any
// further duplicates of that mentor are dropped. The input overlay is not modified.
func UpsertAssignment(overlay models.DraftOverlay, assignment models.MentorAssignment) (models.DraftOverlay, bool) {
	assignment = overlayEntry(assignment)
	out := cloneOverlay(overlay)
	out.MentorAssignments = make([]models.MentorAssignment, 0, len(overlay.MentorAssignments)+1)
	replaced := false
	for _, a := range overlay.MentorAssignments {
		if a.MentorID != assignment.MentorID {
			out.MentorAssignments = append(out.MentorAssignments, a)
			continue
		}
		if !replaced {
			out.MentorAssignments = append(out.MentorAssignments, assignment)
			replaced = true
		}
	}
	if !replaced {
		out.MentorAssignments = append(out.MentorAssignments, assignment)
	}
	return out, replaced
}

// RemoveAssignment drops every entry for the mentor.
func RemoveAssignment(overlay models.DraftOverlay, mentorID string) (models.DraftOverlay, bool) {
	out := cloneOverlay(overlay)
	out.MentorAssignments = make([]models.MentorAssignment, 0, len(overlay.MentorAssignments))
	removed := false
	for _, a := range overlay.MentorAssignments {
		if a.MentorID == mentorID {
			removed = true
			continue
		}
		out.MentorAssignments = append(out.MentorAssignments, a)
	}
	return out, removed
}

// SetCosts overwrites the overlay cost fields. Nil arguments leave the field untouched.
func SetCosts(overlay models.DraftOverlay, food, other *models.Amount) models.DraftOverlay {
	out := cloneOverlay(overlay)
	if food != nil {
		v := *food
		out.FoodCost = &v
	}
	if other != nil {
		v := *other
		out.OtherCost = &v
	}
	return out
}

// Normalize prepares an overlay for storage or promotion: entries without a mentor id are
// dropped and duplicates collapse into the position of the first one with the values of the
// last one.
func Normalize(overlay models.DraftOverlay) models.DraftOverlay {
	out := cloneOverlay(overlay)
	out.MentorAssignments = make([]models.MentorAssignment, 0, len(overlay.MentorAssignments))
	position := make(map[string]int, len(overlay.MentorAssignments))
	for _, a := range overlay.MentorAssignments {
		if strings.TrimSpace(a.MentorID) == "" {
			continue
		}
		a = overlayEntry(a)
		if idx, ok := position[a.MentorID]; ok {
			out.MentorAssignments[idx] = a
			continue
		}
		position[a.MentorID] = len(out.MentorAssignments)
		out.MentorAssignments = append(out.MentorAssignments, a)
	}
	return out
}

// overlayEntry strips display-only fields before an assignment is stored in the overlay.
func overlayEntry(a models.MentorAssignment) models.MentorAssignment {
	a.ID = ""
	a.CourseID = ""
	a.IsDraft = false
	return a
}

func cloneOverlay(overlay models.DraftOverlay) models.DraftOverlay {
	out := models.DraftOverlay{
		MentorAssignments: append([]models.MentorAssignment{}, overlay.MentorAssignments...),
	}
	if overlay.FoodCost != nil {
		v := *overlay.FoodCost
		out.FoodCost = &v
	}
	if overlay.OtherCost != nil {
		v := *overlay.OtherCost
		out.OtherCost = &v
	}
	return out
}
