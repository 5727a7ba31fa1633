package shared

// Upper bounds on user-supplied kitchen inputs. The lower bound is 1 for cooks,
// stoves and plan days, and 0 for servings.
const (
	MaxCooks    = 8
	MaxStoves   = 10
	MaxPlanDays = 14
	MaxServings = 50
)
