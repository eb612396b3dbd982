package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronParser wraps robfig/cron for parsing schedule expressions.
// Standard five-field expressions and descriptors (@daily, @every 5m)
// are accepted.
type CronParser struct {
	parser cron.Parser
}

func NewCronParser() *CronParser {
	return &CronParser{
		parser: cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
}

// Parse parses a cron expression.
func (p *CronParser) Parse(expression string) (cron.Schedule, error) {
	schedule, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression: %w", err)
	}
	return schedule, nil
}

// NextAfter calculates the next run time for an expression strictly
// after the given instant, in that instant's location.
func (p *CronParser) NextAfter(expression string, after time.Time) (time.Time, error) {
	schedule, err := p.Parse(expression)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}
