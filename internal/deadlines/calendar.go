// Package deadlines loads the filing-window calendar and answers how many
// days remain before each review body stops accepting appeals. Deadlines are
// advisory: they are shown next to an analysis and never gate a decision.
package deadlines

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

const dateLayout = "2006-01-02"

// Date is a calendar day parsed from YYYY-MM-DD.
type Date struct {
	time.Time
}

// UnmarshalYAML parses a YYYY-MM-DD scalar.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	t, err := time.Parse(dateLayout, node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid date %q: %w", node.Line, node.Value, err)
	}
	d.Time = t
	return nil
}

// Window is one body's filing window. An empty Township applies county-wide.
type Window struct {
	Township string            `yaml:"township"`
	Body     models.ReviewBody `yaml:"body"`
	Year     int               `yaml:"year"`
	Opens    Date              `yaml:"opens"`
	Closes   Date              `yaml:"closes"`
}

// Calendar is the parsed deadline file.
type Calendar struct {
	Windows []Window `yaml:"windows"`
}

// Countdown is the advisory view of one window relative to a reference day.
type Countdown struct {
	Body          models.ReviewBody `json:"body"`
	Opens         string            `json:"opens"`
	Closes        string            `json:"closes"`
	DaysRemaining int               `json:"daysRemaining"`
	Open          bool              `json:"open"`
}

// Load reads the calendar at path. Returns nil (not an error) if path is
// empty or the file does not exist.
func Load(path string) (*Calendar, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates calendar YAML.
func Parse(data []byte) (*Calendar, error) {
	var c Calendar
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal deadline calendar: %w", err)
	}
	for i, w := range c.Windows {
		switch w.Body {
		case models.BodyCCAO, models.BodyBOR, models.BodyPTAB:
		default:
			return nil, fmt.Errorf("window %d: unknown review body %q", i, w.Body)
		}
		if w.Closes.Before(w.Opens.Time) {
			return nil, fmt.Errorf("window %d: closes before it opens", i)
		}
	}
	return &c, nil
}

// Lookup returns the countdowns for the township's assessment year, one per
// body in review order, preferring a township-specific window over a
// county-wide one. A nil calendar yields nil.
func (c *Calendar) Lookup(_ context.Context, township string, year int, asOf time.Time) ([]Countdown, error) {
	if c == nil {
		return nil, nil
	}

	chosen := map[models.ReviewBody]Window{}
	for _, w := range c.Windows {
		if w.Year != year {
			continue
		}
		specific := strings.EqualFold(w.Township, township)
		if w.Township != "" && !specific {
			continue
		}
		if prev, ok := chosen[w.Body]; ok && prev.Township != "" && !specific {
			continue
		}
		chosen[w.Body] = w
	}
	if len(chosen) == 0 {
		return nil, nil
	}

	day := truncateDay(asOf)
	out := make([]Countdown, 0, len(chosen))
	for _, w := range chosen {
		remaining := int(math.Round(w.Closes.Sub(day).Hours() / 24))
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Countdown{
			Body:          w.Body,
			Opens:         w.Opens.Format(dateLayout),
			Closes:        w.Closes.Format(dateLayout),
			DaysRemaining: remaining,
			Open:          !day.Before(w.Opens.Time) && !day.After(w.Closes.Time),
		})
	}

	sort.Slice(out, func(i, j int) bool { return bodyOrder(out[i].Body) < bodyOrder(out[j].Body) })
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bodyOrder(b models.ReviewBody) int {
	switch b {
	case models.BodyCCAO:
		return 0
	case models.BodyBOR:
		return 1
	default:
		return 2
	}
}
