// Package render prints planner data as terminal tables.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"squad-planner/internal/derive"
	"squad-planner/internal/domain"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Attributes writes one row per parsed attribute in vocabulary order.
func Attributes(w io.Writer, attrs derive.AttributeMap) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Attribute", "Value"})

	data := make([][]string, 0, attrs.Len())
	found := 0
	for _, key := range attrs.Keys() {
		v := attrs.Get(key)
		if v != domain.MissingValue {
			found++
		}
		data = append(data, []string{key, v})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Found %d of %d attributes\n", found, attrs.Len())
	return err
}

// Breakdown writes the intermediate terms of one damage score.
func Breakdown(w io.Writer, role domain.Role, b derive.ScoreBreakdown, final float64) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Term", "Value"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	p := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	data := [][]string{
		{"attack sum (troop)", p(b.AtkSum)},
		{"attack sum (" + string(role) + ")", p(b.VarAtkSum)},
		{"damage sum (troop)", p(b.DmgSum)},
		{"damage sum (" + string(role) + ")", p(b.VarDmgSum)},
		{"blessing sum (troop)", p(b.BlessSum)},
		{"blessing sum (" + string(role) + ")", p(b.VarBlessSum)},
		{"atlantis bonus", p(b.Bonus)},
		{"lethal hit rate", p(b.Lethal)},
		{"part1", p(b.Part1)},
		{"part2", p(b.Part2)},
		{"part3", p(b.Part3)},
		{"part4", p(b.Part4)},
		{"score (exact)", p(b.Score)},
		{"score", fmtFloat(derive.Round(b.Score, derive.ScorePrecision))},
		{"final damage", fmtFloat(final)},
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// Tiers writes each view as its own table, best tier first. Tier names are
// painted in their configured color when useColor is set.
func Tiers(w io.Writer, views derive.RoleBuckets, useColor bool) error {
	names := []string{string(domain.RoleArcher), string(domain.RoleCavalry), string(domain.RoleSiege), derive.ViewAverage}
	for _, name := range names {
		view, ok := views[name]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n%s\n", strings.ToUpper(name)); err != nil {
			return err
		}
		if err := tierTable(w, view, useColor); err != nil {
			return err
		}
	}
	return nil
}

func tierTable(w io.Writer, view derive.TierBuckets, useColor bool) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Tier", "Limit", "Avg", "Players", "Members"})

	var data [][]string
	for _, b := range view.Ordered() {
		paint := fmt.Sprint
		if useColor {
			paint = tierPainter(b.Tier.Color)
		}

		limit := fmtFloat(b.Tier.Limit)
		if b.Tier.Default {
			limit = "-"
		}

		members := make([]string, len(b.Members))
		for i, m := range b.Members {
			members[i] = fmt.Sprintf("%s (%s)", m.Name, fmtFloat(m.Score))
		}

		data = append(data, []string{
			paint(b.Tier.Name),
			limit,
			fmtFloat(b.AvgScore),
			strconv.Itoa(len(b.Members)),
			strings.Join(members, ", "),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// tierPainter maps "#rrggbb" tier colors to a terminal color. Anything else
// is printed bold.
func tierPainter(hex string) func(...any) string {
	if r, g, b, ok := parseHex(hex); ok {
		return color.RGB(r, g, b).SprintFunc()
	}
	return color.New(color.Bold).SprintFunc()
}

func parseHex(s string) (int, int, int, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

// Formation writes the allocation rows followed by their march lines.
func Formation(w io.Writer, settings domain.FormationSettings, role domain.Role, rows []domain.FormationRow) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	headers := []string{"Tier", "Damage", "Count", "Troops"}
	for _, r := range settings.Ratios() {
		headers = append(headers, fmt.Sprintf("%s (%s%%)", r.Name, fmtFloat(r.Percent)))
	}
	headers = append(headers, "March", "Total")
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	var used float64
	for _, row := range rows {
		line := []string{row.Group, fmtFloat(row.Damage), strconv.Itoa(row.Count), fmtFloat(row.Troops)}
		for _, st := range row.SubTypes {
			line = append(line, fmtFloat(st.Count)+"k")
		}
		line = append(line, fmtFloat(row.MarchSize)+"k", fmtFloat(row.Total))
		data = append(data, line)
		used += row.Total
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Budget %s, allocated %s\n", fmtFloat(settings.Budget(role)), fmtFloat(derive.Round(used, 2))); err != nil {
		return err
	}
	for _, row := range rows {
		if row.Count == 0 {
			continue
		}
		if _, err := fmt.Fprintln(w, derive.MarchText(row)); err != nil {
			return err
		}
	}
	return nil
}
