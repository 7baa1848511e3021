package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/adpacks/internal/formatter"
	"github.com/desertthunder/adpacks/internal/models"
)

var (
	_ list.Item = packItem{}
	_ list.Item = jobItem{}
)

// packItem wraps [models.Pack] to implement [list.Item].
type packItem struct {
	pack     models.Pack
	updating bool
	paused   bool
}

func (i packItem) FilterValue() string { return i.pack.Name }
func (i packItem) Title() string {
	title := i.pack.Name
	if i.updating {
		title += " " + styles.badge(styles.warn, "updating")
	}
	if i.paused {
		title += " " + styles.badge(styles.paused, "sheet sync paused")
	}
	return title
}
func (i packItem) Description() string {
	parts := []string{fmt.Sprintf("%s → %s", i.pack.DateStart, i.pack.DateStop), i.pack.Level}
	if s := i.pack.Stats; s != nil {
		parts = append(parts,
			fmt.Sprintf("%s ads", formatter.StatValue(s.TotalAds)),
			fmt.Sprintf("spend %s", formatter.StatValue(s.TotalSpend)),
		)
	} else {
		parts = append(parts, "no stats")
	}
	return strings.Join(parts, " • ")
}

// jobItem wraps [models.PausedSheetJob] to implement [list.Item].
type jobItem struct {
	job models.PausedSheetJob
}

func (i jobItem) FilterValue() string { return i.job.PackName }
func (i jobItem) Title() string {
	if i.job.PackName != "" {
		return i.job.PackName
	}
	return i.job.PackID
}
func (i jobItem) Description() string {
	return fmt.Sprintf("job %s • paused %s • %s", i.job.SyncJobID, i.job.PausedAt.Format("2006-01-02 15:04"), i.job.Reason)
}
