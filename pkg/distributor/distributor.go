// Package distributor keeps the per-user traffic weights of an assign_user
// action summing to 100 and picks the user that receives a dispatch.
package distributor

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/dukex/orderflow/pkg/models"
)

const (
	totalWeight = 100.0
	// Tolerance is the allowed deviation of a non-empty set from 100.
	Tolerance = 0.1
)

var (
	ErrUnknownUser   = errors.New("user is not an assignee")
	ErrDuplicateUser = errors.New("user is already an assignee")
	ErrNoAssignees   = errors.New("no assignees to dispatch to")
)

// AddUser appends userID. In even mode every assignee, the new one included,
// gets 100/(n+1). In weighted mode the new user starts at 0, unless it is the
// only assignee, which always holds 100.
func AddUser(assignments []models.UserAssignment, userID string, mode models.DistributionMode) ([]models.UserAssignment, error) {
	if index(assignments, userID) >= 0 {
		return assignments, fmt.Errorf("%w: %s", ErrDuplicateUser, userID)
	}

	out := append(clone(assignments), models.UserAssignment{UserID: userID})

	if mode == models.DistributionEven || len(out) == 1 {
		return DistributeEvenly(out), nil
	}

	return out, nil
}

// RemoveUser drops userID. In even mode the remaining assignees are reset to
// an even split; in weighted mode they keep their weights.
func RemoveUser(assignments []models.UserAssignment, userID string, mode models.DistributionMode) ([]models.UserAssignment, error) {
	i := index(assignments, userID)
	if i < 0 {
		return assignments, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	out := make([]models.UserAssignment, 0, len(assignments)-1)
	out = append(out, assignments[:i]...)
	out = append(out, assignments[i+1:]...)

	if mode == models.DistributionEven && len(out) > 0 {
		return DistributeEvenly(out), nil
	}

	return out, nil
}

// SetWeight sets userID to targetWeight, clamped to [0,100] with NaN read as
// 0, and spreads the
// remainder over the other assignees in proportion to their previous weights,
// or evenly when they were all zero. The adjusted user comes first in the
// result, followed by the others in their original order.
func SetWeight(assignments []models.UserAssignment, userID string, targetWeight float64) ([]models.UserAssignment, error) {
	i := index(assignments, userID)
	if i < 0 {
		return assignments, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	if math.IsNaN(targetWeight) {
		targetWeight = 0
	}

	targetWeight = math.Max(0, math.Min(totalWeight, targetWeight))

	others := make([]models.UserAssignment, 0, len(assignments)-1)
	others = append(others, assignments[:i]...)
	others = append(others, assignments[i+1:]...)

	if len(others) == 0 {
		return []models.UserAssignment{{UserID: userID, Weight: totalWeight}}, nil
	}

	target := round(targetWeight)
	remaining := totalWeight - target
	othersTotal := models.TotalWeight(others)

	for j := range others {
		if othersTotal > 0 {
			others[j].Weight = others[j].Weight / othersTotal * remaining
		} else {
			others[j].Weight = remaining / float64(len(others))
		}
	}

	balance(others, remaining)

	return append([]models.UserAssignment{{UserID: userID, Weight: target}}, others...), nil
}

// DistributeEvenly sets every weight to 100/n.
func DistributeEvenly(assignments []models.UserAssignment) []models.UserAssignment {
	if len(assignments) == 0 {
		return assignments
	}

	out := clone(assignments)
	even := totalWeight / float64(len(out))

	for j := range out {
		out[j].Weight = even
	}

	balance(out, totalWeight)

	return out
}

// Balanced reports whether a non-empty set sums to 100 within Tolerance.
func Balanced(assignments []models.UserAssignment) bool {
	if len(assignments) == 0 {
		return true
	}

	return math.Abs(models.TotalWeight(assignments)-totalWeight) <= Tolerance+1e-9
}

// Select picks the user receiving a dispatch. Even mode draws uniformly;
// weighted mode walks the cumulative weights with a draw in [0, Σweight).
func Select(assignments []models.UserAssignment, mode models.DistributionMode, rnd *rand.Rand) (string, error) {
	if len(assignments) == 0 {
		return "", ErrNoAssignees
	}

	intn := rand.IntN
	float := rand.Float64

	if rnd != nil {
		intn = rnd.IntN
		float = rnd.Float64
	}

	total := models.TotalWeight(assignments)
	if mode == models.DistributionEven || total <= 0 {
		return assignments[intn(len(assignments))].UserID, nil
	}

	draw := float() * total
	cumulative := 0.0

	for _, a := range assignments {
		cumulative += a.Weight
		if draw < cumulative {
			return a.UserID, nil
		}
	}

	return assignments[len(assignments)-1].UserID, nil
}

// balance rounds every weight to one decimal so that the set sums exactly to
// target. Tenths lost to rounding go to the entries with the largest
// remainders; ties favour later entries.
func balance(assignments []models.UserAssignment, target float64) {
	if len(assignments) == 0 {
		return
	}

	units := int(math.Round(target * 10))
	tenths := make([]int, len(assignments))
	remainders := make([]float64, len(assignments))
	order := make([]int, len(assignments))
	allocated := 0

	for j, a := range assignments {
		scaled := math.Max(0, a.Weight*10)
		floor := math.Floor(scaled + 1e-9)
		tenths[j] = int(floor)
		remainders[j] = scaled - floor
		order[j] = j
		allocated += tenths[j]
	}

	sort.SliceStable(order, func(x, y int) bool {
		if remainders[order[x]] == remainders[order[y]] {
			return order[x] > order[y]
		}

		return remainders[order[x]] > remainders[order[y]]
	})

	for k := 0; allocated < units; k++ {
		tenths[order[k%len(order)]]++
		allocated++
	}

	for allocated > units {
		reduced := false

		for k := len(order) - 1; k >= 0 && allocated > units; k-- {
			if j := order[k]; tenths[j] > 0 {
				tenths[j]--
				allocated--
				reduced = true
			}
		}

		if !reduced {
			break
		}
	}

	for j := range assignments {
		assignments[j].Weight = float64(tenths[j]) / 10
	}
}

func round(value float64) float64 {
	return math.Round(value*10) / 10
}

func index(assignments []models.UserAssignment, userID string) int {
	for i, a := range assignments {
		if a.UserID == userID {
			return i
		}
	}

	return -1
}

func clone(assignments []models.UserAssignment) []models.UserAssignment {
	return append([]models.UserAssignment(nil), assignments...)
}
