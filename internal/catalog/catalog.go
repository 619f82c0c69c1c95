// Package catalog holds the static challenge directory: the
// sustainable-action catalog and the rolling week of daily challenges.
package catalog

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wattWiseAPI/internal/schedule"
	"wattWiseAPI/internal/types/action"
	"wattWiseAPI/internal/types/challenge"
)

// defaultActions is the built-in catalog, used when no YAML file is
// configured. Keep the ids stable because clients persist them.
func defaultActions() []*action.SustainableAction {
	return []*action.SustainableAction{
		{ID: "lights_off", Label: "Lights off", Description: "Turn off all non-essential lights for the evening", Points: 10},
		{ID: "unplug_standby", Label: "Unplug standby devices", Description: "Pull chargers, TVs and consoles off standby power", Points: 15},
		{ID: "no_tv", Label: "Screen-free evening", Description: "Keep the TV and game consoles off during the challenge hour", Points: 30},
		{ID: "cold_meal", Label: "No-cook dinner", Description: "Prepare dinner without the stove or oven", Points: 45},
		{ID: "no_dishwasher", Label: "Skip the dishwasher", Description: "Wash up by hand or wait for a full load tomorrow", Points: 60},
		{ID: "no_oven", Label: "Oven stays cold", Description: "Avoid using the electric oven all evening", Points: 80},
		{ID: "shorter_shower", Label: "Shorter shower", Description: "Cut your electrically heated shower to five minutes", Points: 25},
		{ID: "no_heating_boost", Label: "No heating boost", Description: "Leave the electric heater or AC untouched during the window", Points: 120},
		{ID: "dryer", Label: "Skip the dryer", Description: "Air-dry your laundry instead of running the tumble dryer", Points: 190},
		{ID: "candle_hour", Label: "Candle hour", Description: "Light the living room with candles instead of lamps", Points: 5},
	}
}

// Catalog is the process-wide action directory. It is immutable after
// construction.
type Catalog struct {
	actions []*action.SustainableAction
	byID    map[string]*action.SustainableAction
}

// New builds a catalog from the given actions. Duplicate ids are an
// error because scoring looks points up by id.
func New(actions []*action.SustainableAction) (*Catalog, error) {
	byID := make(map[string]*action.SustainableAction, len(actions))
	for _, a := range actions {
		if a.ID == action.NoneSentinel {
			return nil, fmt.Errorf("action id %q is reserved", action.NoneSentinel)
		}
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate action id %q", a.ID)
		}
		byID[a.ID] = a
	}
	return &Catalog{actions: actions, byID: byID}, nil
}

// Load reads the action catalog from a YAML file. An empty path falls
// back to the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(defaultActions())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action catalog: %w", err)
	}

	var file struct {
		Actions []*action.SustainableAction `yaml:"actions"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse action catalog: %w", err)
	}
	if len(file.Actions) == 0 {
		return nil, fmt.Errorf("action catalog %s contains no actions", path)
	}

	return New(file.Actions)
}

// Actions returns the catalog in declaration order.
func (c *Catalog) Actions() []*action.SustainableAction {
	return c.actions
}

// Points returns the point value for an action id. The second return
// is false for unknown ids (including the "none" sentinel, which is
// worth nothing by definition).
func (c *Catalog) Points(id string) (int, bool) {
	a, ok := c.byID[id]
	if !ok {
		return 0, false
	}
	return a.Points, true
}

// Has reports whether the id names a real catalog action.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// recommendedPerDay is how many actions each challenge suggests.
const recommendedPerDay = 4

// BuildWeek computes the rolling 7-day challenge window anchored at
// start. Challenge ids are 1-based positions in the date list; each day
// recommends a rotating slice of the catalog.
func (c *Catalog) BuildWeek(start time.Time) *challenge.Week {
	day := schedule.DayOf(start)
	week := &challenge.Week{Start: day}

	for i := 0; i < 7; i++ {
		date := day.AddDate(0, 0, i)

		recommended := make([]string, 0, recommendedPerDay)
		for j := 0; j < recommendedPerDay && j < len(c.actions); j++ {
			recommended = append(recommended, c.actions[(i+j)%len(c.actions)].ID)
		}

		week.Challenges = append(week.Challenges, &challenge.Challenge{
			ID:                 i + 1,
			Date:               date,
			StartTime:          schedule.ChallengeStart(date),
			EndTime:            schedule.ChallengeEnd(date),
			RecommendedActions: recommended,
		})
	}

	return week
}
