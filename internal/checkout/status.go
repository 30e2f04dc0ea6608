package checkout

type Status string

const (
	StatusIdle            Status = "IDLE"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusSettling        Status = "SETTLING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// validTransitions is the single checkout attempt state machine.
// AwaitingPayment may fall back to Idle when the rendered amount no
// longer matches the cart and the widget must be re-rendered.
var validTransitions = map[Status][]Status{
	StatusIdle:            {StatusAwaitingPayment},
	StatusAwaitingPayment: {StatusSettling, StatusFailed, StatusIdle},
	StatusSettling:        {StatusCompleted, StatusFailed},
}

func CanTransitionTo(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
