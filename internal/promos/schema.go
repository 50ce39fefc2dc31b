package promos

import (
	"encoding/json"
	"time"
)

const (
	TypePercent = "percent"
	TypeBundle  = "bundle"
)

// Promo is one promotional rule. Percent promos discount individual courses;
// bundle promos replace one unit of each included course with a pack price.
type Promo struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Title           string   `json:"title"`
	Badge           string   `json:"badge"`
	ActiveFrom      string   `json:"activeFrom"`
	ActiveTo        string   `json:"activeTo"`
	Priority        int      `json:"priority"`
	Courses         []string `json:"courses"`
	DiscountPercent int      `json:"discountPercent"`
	BundlePricePEN  int      `json:"bundlePricePEN"`
}

type payload struct {
	Promos []Promo `json:"promos"`
}

// Normalize parses a promos payload and drops entries that cannot be applied
// (unknown type, missing id or window, nonsensical numbers). A broken feed
// degrades to fewer promos, never to an error mid-checkout.
func Normalize(raw []byte) []Promo {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	out := make([]Promo, 0, len(p.Promos))
	for _, promo := range p.Promos {
		if promo.ID == "" || promo.ActiveFrom == "" || promo.ActiveTo == "" {
			continue
		}
		switch promo.Type {
		case TypePercent:
			if promo.DiscountPercent <= 0 || promo.DiscountPercent > 100 {
				continue
			}
		case TypeBundle:
			if promo.BundlePricePEN <= 0 || len(promo.Courses) == 0 {
				continue
			}
		default:
			continue
		}
		out = append(out, promo)
	}
	return out
}

// ActiveAt reports whether now falls inside the promo window. Dates are
// date-only UTC; the window is inclusive through the end of the activeTo day.
func (p Promo) ActiveAt(now time.Time) bool {
	from, err := time.ParseInLocation("2006-01-02", p.ActiveFrom, time.UTC)
	if err != nil {
		return false
	}
	to, err := time.ParseInLocation("2006-01-02", p.ActiveTo, time.UTC)
	if err != nil {
		return false
	}
	end := to.Add(24*time.Hour - time.Millisecond)
	return !now.Before(from) && !now.After(end)
}

// AppliesTo reports whether a percent promo covers a course; an empty course
// list means the promo is global.
func (p Promo) AppliesTo(slug string) bool {
	if len(p.Courses) == 0 {
		return true
	}
	for _, c := range p.Courses {
		if c == slug {
			return true
		}
	}
	return false
}
