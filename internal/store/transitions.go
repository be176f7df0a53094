package store

import "github.com/Criozon/q-app/internal/models"

// transitionMap lists the member statuses each action may start from.
// Joining is not listed: a join creates the row. Serviced appears in no
// entry, which makes it terminal.
var transitionMap = map[string][]string{
	"call_next":     {models.StatusWaiting},
	"call_specific": {models.StatusWaiting},
	"acknowledge":   {models.StatusCalled},
	"return":        {models.StatusCalled, models.StatusAcknowledged},
	"complete":      {models.StatusCalled, models.StatusAcknowledged},
	"remove":        {models.StatusWaiting, models.StatusCalled, models.StatusAcknowledged},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
