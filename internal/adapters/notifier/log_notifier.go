package notifier

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

var _ domain.Notifier = (*LogNotifier)(nil)

// LogNotifier writes one "care_due" line per user. It stands in for a real delivery
// channel and is what the service wires by default.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyDue(ctx context.Context, occurrences []*domain.TaskOccurrence) error {
	byUser := make(map[string][]*domain.TaskOccurrence)
	for _, o := range occurrences {
		byUser[o.UserID] = append(byUser[o.UserID], o)
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}

		items := byUser[u]
		tasks := make([]string, 0, len(items))
		for _, o := range items {
			tasks = append(tasks, o.PlantID+":"+string(o.CareType))
		}

		n.logger.Info("care_due",
			zap.String("user_id", u),
			zap.String("day", items[0].ScheduledDate.String()),
			zap.Int("count", len(items)),
			zap.Strings("tasks", tasks),
		)
	}
	return nil
}
