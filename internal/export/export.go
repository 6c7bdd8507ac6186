// Package export writes the per-category card archives into one xlsx workbook.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"playlist-cards-go/internal/types"
)

const (
	summarySheet = "Summary"
	maxSheetName = 31
)

var ErrNoCategories = errors.New("no category archives to export")

// Source is the read side of the category archive.
type Source interface {
	Categories() ([]string, error)
	Load(label string) ([]types.Card, error)
}

type Report struct {
	Categories int `json:"categories"`
	Cards      int `json:"cards"`
}

// Write builds a workbook with a summary sheet and one sheet per category,
// then saves it to path.
func Write(path string, src Source, log *logrus.Entry) (Report, error) {
	log = log.WithFields(logrus.Fields{"component": "export", "path": path})

	labels, err := src.Categories()
	if err != nil {
		return Report{}, fmt.Errorf("list categories: %w", err)
	}
	if len(labels) == 0 {
		return Report{}, ErrNoCategories
	}
	sort.Strings(labels)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Warn("close workbook")
		}
	}()
	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return Report{}, fmt.Errorf("rename summary sheet: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"Category", "Cards", "Sheet"}); err != nil {
		return Report{}, err
	}

	var rep Report
	used := map[string]struct{}{strings.ToLower(summarySheet): {}}
	for _, label := range labels {
		cards, err := src.Load(label)
		if err != nil {
			log.WithError(err).WithField("category", label).Warn("skipping unreadable category")
			continue
		}
		sheet := sheetName(label, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return Report{}, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := writeCards(f, sheet, cards); err != nil {
			return Report{}, fmt.Errorf("write sheet %s: %w", sheet, err)
		}

		rep.Categories++
		rep.Cards += len(cards)
		cell, _ := excelize.CoordinatesToCellName(1, rep.Categories+1)
		if err := f.SetSheetRow(summarySheet, cell, &[]any{label, len(cards), sheet}); err != nil {
			return Report{}, err
		}
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 40); err != nil {
		return Report{}, err
	}
	if err := f.SaveAs(path); err != nil {
		return Report{}, fmt.Errorf("save workbook: %w", err)
	}
	log.WithFields(logrus.Fields{"categories": rep.Categories, "cards": rep.Cards}).Info("exported cards")
	return rep, nil
}

func writeCards(f *excelize.File, sheet string, cards []types.Card) error {
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Front", "Back", "Extra"}); err != nil {
		return err
	}
	for i, c := range cards {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{c.Front, c.Back, extra(c)}); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "B", 60)
}

// extra renders fields beyond front/back as a compact JSON object.
func extra(c types.Card) string {
	if len(c.Extra) == 0 {
		return ""
	}
	b, err := json.Marshal(c.Extra)
	if err != nil {
		return ""
	}
	return string(b)
}

// sheetName fits a category into the 31 rune sheet limit, suffixing a counter
// when two categories collide after truncation.
func sheetName(label string, used map[string]struct{}) string {
	name := truncate(label, maxSheetName)
	for n := 2; ; n++ {
		if _, taken := used[strings.ToLower(name)]; !taken {
			break
		}
		suffix := fmt.Sprintf("_%d", n)
		name = truncate(label, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = struct{}{}
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
