package promos

import (
	"math"
	"sort"
	"time"
)

type DisplayPrice struct {
	BasePricePEN  int
	FinalPricePEN int
	Badge         string
	Bundle        *Promo
}

type CartItem struct {
	Slug string `json:"slug"`
	Qty  int    `json:"qty"`
}

type Line struct {
	Kind             string   `json:"kind"`
	Slug             string   `json:"slug,omitempty"`
	PromoID          string   `json:"promoId,omitempty"`
	Title            string   `json:"title"`
	Qty              int      `json:"qty"`
	UnitPricePEN     int      `json:"unitPricePEN"`
	BaseUnitPricePEN int      `json:"baseUnitPricePEN,omitempty"`
	LineTotalPEN     int      `json:"lineTotalPEN"`
	Includes         []string `json:"includes,omitempty"`
}

type Discount struct {
	Label     string `json:"label"`
	AmountPEN int    `json:"amountPEN"`
}

type Totals struct {
	Lines       []Line     `json:"lines"`
	SubtotalPEN int        `json:"subtotalPEN"`
	Discounts   []Discount `json:"discounts"`
	TotalPEN    int        `json:"totalPEN"`
}

func percentOff(base, percent int) int {
	return int(math.Round(float64(base) * (1 - float64(percent)/100)))
}

// DisplayPriceForCourse resolves the price a single course shows: the best
// active percent promo wins (highest discount, then priority); bundle promos
// never change the unit price, they only surface as a pack suggestion.
func DisplayPriceForCourse(all []Promo, slug string, basePEN int, now time.Time) DisplayPrice {
	var best *Promo
	var bundle *Promo
	for i := range all {
		p := &all[i]
		if !p.ActiveAt(now) {
			continue
		}
		switch p.Type {
		case TypePercent:
			if !p.AppliesTo(slug) {
				continue
			}
			if best == nil ||
				p.DiscountPercent > best.DiscountPercent ||
				(p.DiscountPercent == best.DiscountPercent && p.Priority > best.Priority) {
				best = p
			}
		case TypeBundle:
			if !containsSlug(p.Courses, slug) {
				continue
			}
			if bundle == nil || p.Priority > bundle.Priority {
				bundle = p
			}
		}
	}

	out := DisplayPrice{BasePricePEN: basePEN, FinalPricePEN: basePEN, Bundle: bundle}
	if best != nil {
		out.FinalPricePEN = percentOff(basePEN, best.DiscountPercent)
		out.Badge = best.Badge
	}
	return out
}

// ComputeCheckoutTotals prices a cart: percent discounts per course line,
// then bundle collapse. A bundle consumes one unit of each included course
// and is charged at the pack price, which never receives percent discounts.
func ComputeCheckoutTotals(items []CartItem, basePEN map[string]int, titles map[string]string, all []Promo, now time.Time) Totals {
	active := make([]Promo, 0, len(all))
	for _, p := range all {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}

	subtotal := 0
	for _, it := range items {
		subtotal += basePEN[it.Slug] * it.Qty
	}

	lines := make([]Line, 0, len(items))
	for _, it := range items {
		base := basePEN[it.Slug]
		view := DisplayPriceForCourse(active, it.Slug, base, now)
		title := titles[it.Slug]
		if title == "" {
			title = it.Slug
		}
		lines = append(lines, Line{
			Kind:             "course",
			Slug:             it.Slug,
			Title:            title,
			Qty:              it.Qty,
			UnitPricePEN:     view.FinalPricePEN,
			BaseUnitPricePEN: base,
			LineTotalPEN:     view.FinalPricePEN * it.Qty,
		})
	}

	var discounts []Discount

	bundles := make([]Promo, 0, len(active))
	for _, p := range active {
		if p.Type == TypeBundle {
			bundles = append(bundles, p)
		}
	}
	sort.SliceStable(bundles, func(i, j int) bool { return bundles[i].Priority > bundles[j].Priority })

	for _, b := range bundles {
		if len(b.Courses) == 0 {
			continue
		}
		if !cartHasAll(lines, b.Courses) {
			continue
		}
		sumSingles := 0
		for _, slug := range b.Courses {
			sumSingles += basePEN[slug]
		}
		// A pack that costs as much as the singles is not a discount.
		if b.BundlePricePEN >= sumSingles {
			continue
		}

		next := make([]Line, 0, len(lines)+1)
		for _, l := range lines {
			if l.Kind != "course" || !containsSlug(b.Courses, l.Slug) {
				next = append(next, l)
				continue
			}
			if l.Qty-1 <= 0 {
				continue
			}
			l.Qty--
			l.LineTotalPEN = l.UnitPricePEN * l.Qty
			next = append(next, l)
		}
		next = append(next, Line{
			Kind:         "bundle",
			PromoID:      b.ID,
			Title:        b.Title,
			Qty:          1,
			UnitPricePEN: b.BundlePricePEN,
			LineTotalPEN: b.BundlePricePEN,
			Includes:     append([]string(nil), b.Courses...),
		})
		lines = next

		label := b.Badge
		if label == "" {
			label = "PROMO"
		}
		discounts = append(discounts, Discount{
			Label:     "Pack aplicado (" + label + ")",
			AmountPEN: sumSingles - b.BundlePricePEN,
		})
	}

	percentSaved := 0
	for _, l := range lines {
		if l.Kind == "course" {
			percentSaved += (l.BaseUnitPricePEN - l.UnitPricePEN) * l.Qty
		}
	}
	if percentSaved > 0 {
		discounts = append([]Discount{{Label: "Descuento aplicado", AmountPEN: percentSaved}}, discounts...)
	}

	total := 0
	for _, l := range lines {
		total += l.LineTotalPEN
	}

	return Totals{
		Lines:       lines,
		SubtotalPEN: subtotal,
		Discounts:   discounts,
		TotalPEN:    total,
	}
}

func cartHasAll(lines []Line, slugs []string) bool {
	for _, slug := range slugs {
		found := false
		for _, l := range lines {
			if l.Kind == "course" && l.Slug == slug && l.Qty >= 1 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsSlug(list []string, slug string) bool {
	for _, c := range list {
		if c == slug {
			return true
		}
	}
	return false
}
