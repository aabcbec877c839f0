package models

// DistributionMode selects how assign_user spreads traffic over assignees.
type DistributionMode string

const (
	DistributionEven     DistributionMode = "even"
	DistributionWeighted DistributionMode = "weighted"
)

// TargetType is the role an assign_user action fills on the record.
type TargetType string

const (
	TargetSalesRep      TargetType = "sales_rep"
	TargetDeliveryAgent TargetType = "delivery_agent"
)

// RecordField returns the record attribute holding the assignee for the target.
func (t TargetType) RecordField() string {
	if t == TargetSalesRep {
		return "customerRepId"
	}

	return "deliveryAgentId"
}

// UserAssignment is one candidate user and its share of traffic in percent.
type UserAssignment struct {
	UserID string  `json:"userId" validate:"required"`
	Weight float64 `json:"weight" validate:"gte=0,lte=100"`
}

// TotalWeight sums the weights of the set.
func TotalWeight(assignments []UserAssignment) float64 {
	total := 0.0
	for _, a := range assignments {
		total += a.Weight
	}

	return total
}
