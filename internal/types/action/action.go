package action

// SustainableAction is a catalog entry. Point values vary per action
// (5 to 190) and must always be looked up by id when scoring.
type SustainableAction struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
	Points      int    `json:"points" yaml:"points"`
}

// NoneSentinel is the completion value meaning "did not participate".
// It yields zero points, resets the streak, and is mutually exclusive
// with any real action id.
const NoneSentinel = "none"
