package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/adpacks/internal/formatter"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PackListView ViewState = iota
	PackDetailView
	RefreshView
	ResultView
	JobsView
)

// SessionSource exposes the current session snapshot.
type SessionSource interface {
	Snapshot() models.Session
}

// Syncer loads the user's packs into the session.
type Syncer interface {
	EnsureLoaded(ctx context.Context, userID string, progress chan<- tasks.ProgressUpdate) (*tasks.SyncResult, error)
}

// Refresher runs pack refreshes and manages paused sheet sync jobs.
type Refresher interface {
	Refresh(ctx context.Context, packID string) (*tasks.PackRefreshResult, error)
	RefreshAll(ctx context.Context, progress chan<- tasks.ProgressUpdate, opts tasks.RefreshAllOpts) (*tasks.RefreshAllResult, error)
	ResumePaused(ctx context.Context, progress chan<- tasks.ProgressUpdate) *tasks.ResumeResult
	Dismiss(packID string) error
}

// UpdatingSet reports packs with a refresh in flight.
type UpdatingSet interface {
	Is(packID string) bool
}

// PausedSet lists paused sheet sync jobs.
type PausedSet interface {
	HasPausedJob(packID string) bool
	GetAllPausedJobs() []models.PausedSheetJob
}

// Deps are the collaborators the dashboard drives.
type Deps struct {
	Session     SessionSource
	Coordinator Syncer
	Refresher   Refresher
	Details     tasks.PackGetter
	Updating    UpdatingSet
	Paused      PausedSet
	RefreshOpts tasks.RefreshAllOpts
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	deps         Deps
	view         ViewState
	width        int
	height       int
	packList     list.Model
	jobList      list.Model
	loader       *tasks.DetailLoader
	detailID     string
	detail       *models.Pack
	progressChan chan tasks.ProgressUpdate
	refreshDone  chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.RefreshAllResult
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

func NewModel(ctx context.Context, deps Deps) *Model {
	m := &Model{
		ctx:  ctx,
		deps: deps,
		view: PackListView,
		help: help.New(),
		keys: newKeyMap(),
	}
	m.packList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.packList.Title = "Ad Packs"
	m.jobList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.jobList.Title = "Paused Sheet Syncs"
	m.rebuildPacks()
	return m
}

// Init loads the user's packs.
func (m *Model) Init() tea.Cmd {
	return m.syncPacks()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.packList.SetSize(msg.Width-4, msg.Height-8)
		m.jobList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && !m.filtering() {
			m.closeLoader()
			return m, tea.Quit
		}
		switch m.view {
		case PackListView:
			return m.handlePackListKeys(msg)
		case PackDetailView:
			return m.handleDetailKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case JobsView:
			return m.handleJobsKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPacksSynced:
		data := msg.data.(packsSynced)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		if data.result != nil && !data.result.Skipped {
			m.status = fmt.Sprintf("Loaded %d packs (%d new, %d updated)", data.result.Fetched, data.result.Inserted, data.result.Updated)
		}
		m.rebuildPacks()

	case MsgDetailLoaded:
		data := msg.data.(detailLoaded)
		if m.view != PackDetailView || data.packID != m.detailID {
			return m, nil
		}
		if data.err != nil {
			m.err = data.err
			m.view = PackListView
			m.closeLoader()
			return m, nil
		}
		m.detail = data.pack

	case MsgPackRefreshed:
		data := msg.data.(packRefreshed)
		switch {
		case data.err != nil:
			m.status = styles.err.Render(fmt.Sprintf("Refresh failed: %v", data.err))
		case data.result.Paused:
			m.status = styles.warn.Render(fmt.Sprintf("Refreshed %s; sheet sync paused until Google Sheets is reconnected", data.result.PackName))
		default:
			m.status = styles.ok.Render(fmt.Sprintf("Refreshed %s", data.result.PackName))
		}
		m.rebuildPacks()
		m.syncDetail(data.packID)

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgRefreshAllComplete:
		data := msg.data.(refreshAllComplete)
		m.result = data.result
		m.err = data.err
		m.progressChan = nil
		m.refreshDone = nil
		m.view = ResultView
		m.rebuildPacks()

	case MsgJobsResumed:
		res := msg.data.(*tasks.ResumeResult)
		m.status = fmt.Sprintf("Resumed %d jobs, %d still paused", len(res.Resumed), len(res.Failed))
		m.rebuildJobs()
		m.rebuildPacks()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}

	switch m.view {
	case PackListView:
		return m.renderPackList()
	case PackDetailView:
		return m.renderDetail()
	case RefreshView:
		return m.renderRefresh()
	case ResultView:
		return m.renderResult()
	case JobsView:
		return m.renderJobs()
	default:
		return ""
	}
}

func (m *Model) filtering() bool {
	switch m.view {
	case PackListView:
		return m.packList.FilterState() == list.Filtering
	case JobsView:
		return m.jobList.FilterState() == list.Filtering
	}
	return false
}

func (m *Model) handlePackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.packList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}
	if m.err != nil && key.Matches(msg, m.keys.refresh) {
		m.err = nil
		return m, m.syncPacks()
	}

	switch {
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.packList.SelectedItem().(packItem); ok {
			return m, m.openDetail(item.pack)
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		if item, ok := m.packList.SelectedItem().(packItem); ok {
			return m, m.refreshPack(item.pack.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.refreshAll):
		m.view = RefreshView
		m.progress = tasks.ProgressUpdate{}
		return m, m.startRefreshAll()
	case key.Matches(msg, m.keys.jobs):
		m.rebuildJobs()
		m.view = JobsView
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.closeLoader()
		m.detail = nil
		m.detailID = ""
		m.view = PackListView
	case key.Matches(msg, m.keys.refresh):
		return m, m.refreshPack(m.detailID)
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.back) || key.Matches(msg, m.keys.enter) {
		m.result = nil
		m.err = nil
		m.view = PackListView
	}
	return m, nil
}

func (m *Model) handleJobsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.jobList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.view = PackListView
		m.rebuildPacks()
		return m, nil
	case key.Matches(msg, m.keys.dismiss):
		if item, ok := m.jobList.SelectedItem().(jobItem); ok {
			if err := m.deps.Refresher.Dismiss(item.job.PackID); err != nil {
				m.status = styles.err.Render(err.Error())
			} else {
				m.status = fmt.Sprintf("Dismissed paused sync for %s", item.Title())
			}
			m.rebuildJobs()
		}
		return m, nil
	case key.Matches(msg, m.keys.resume):
		return m, m.resumeJobs()
	}
	return m.updateLists(msg)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PackListView:
		m.packList, cmd = m.packList.Update(msg)
	case JobsView:
		m.jobList, cmd = m.jobList.Update(msg)
	}
	return m, cmd
}

func (m *Model) rebuildPacks() {
	packs := m.deps.Session.Snapshot().Packs
	items := make([]list.Item, len(packs))
	for i, p := range packs {
		items[i] = packItem{
			pack:     p,
			updating: m.deps.Updating.Is(p.ID),
			paused:   m.deps.Paused.HasPausedJob(p.ID),
		}
	}
	m.packList.SetItems(items)
}

func (m *Model) rebuildJobs() {
	jobs := m.deps.Paused.GetAllPausedJobs()
	items := make([]list.Item, len(jobs))
	for i, j := range jobs {
		items[i] = jobItem{job: j}
	}
	m.jobList.SetItems(items)
}

// syncDetail replaces the open detail with the session's copy after a refresh.
func (m *Model) syncDetail(packID string) {
	if m.view != PackDetailView || m.detailID != packID {
		return
	}
	if p, i := m.deps.Session.Snapshot().FindPack(packID); i >= 0 {
		m.detail = &p
	}
}

func (m *Model) closeLoader() {
	if m.loader != nil {
		m.loader.Close()
		m.loader = nil
	}
}

func (m *Model) syncPacks() tea.Cmd {
	userID := m.deps.Session.Snapshot().UserID()
	return func() tea.Msg {
		result, err := m.deps.Coordinator.EnsureLoaded(m.ctx, userID, nil)
		return packsSyncedMsg(result, err)
	}
}

// openDetail shows the session copy immediately and fetches full detail in the background.
// A result that arrives after the view is left is dropped by the loader.
func (m *Model) openDetail(pack models.Pack) tea.Cmd {
	m.closeLoader()
	m.view = PackDetailView
	m.detailID = pack.ID
	m.detail = &pack

	loader := tasks.NewDetailLoader(m.ctx, m.deps.Details)
	m.loader = loader
	id := pack.ID
	return func() tea.Msg {
		var out tea.Msg
		loader.Load(id,
			func(p models.Pack) { out = detailLoadedMsg(id, &p, nil) },
			func(err error) { out = detailLoadedMsg(id, nil, err) },
		)
		loader.Wait()
		return out
	}
}

func (m *Model) refreshPack(packID string) tea.Cmd {
	if packID == "" {
		return nil
	}
	return func() tea.Msg {
		result, err := m.deps.Refresher.Refresh(m.ctx, packID)
		return packRefreshedMsg(packID, result, err)
	}
}

func (m *Model) resumeJobs() tea.Cmd {
	return func() tea.Msg {
		return jobsResumedMsg(m.deps.Refresher.ResumePaused(m.ctx, nil))
	}
}

func (m *Model) startRefreshAll() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan = progress
	m.refreshDone = done

	go func() {
		result, err := m.deps.Refresher.RefreshAll(m.ctx, progress, m.deps.RefreshOpts)
		done <- refreshAllCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.refreshDone
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-progress:
			return progressUpdateMsg(update)
		case msg := <-done:
			return msg
		}
	}
}

func (m *Model) renderPackList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.refresh, m.keys.refreshAll, m.keys.jobs, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	out := m.packList.View()
	if m.status != "" {
		out += "\n" + m.status
	}
	return fmt.Sprintf("%s\n\n%s", out, helpView)
}

func (m *Model) renderDetail() string {
	if m.detail == nil {
		return "Loading pack..."
	}
	p := m.detail

	var b strings.Builder
	b.WriteString(styles.title.Render(p.Name))
	b.WriteString("\n")
	fmt.Fprintf(&b, "ID:          %s\n", p.ID)
	fmt.Fprintf(&b, "Ad account:  %s\n", p.AdAccountID)
	fmt.Fprintf(&b, "Date range:  %s → %s\n", p.DateStart, p.DateStop)
	fmt.Fprintf(&b, "Level:       %s\n", p.Level)
	fmt.Fprintf(&b, "Auto refresh: %t\n", p.AutoRefresh)
	if s := p.Stats; s != nil {
		fmt.Fprintf(&b, "\nTotal ads:        %s\n", formatter.StatValue(s.TotalAds))
		fmt.Fprintf(&b, "Unique ads:       %s\n", formatter.StatValue(s.UniqueAds))
		fmt.Fprintf(&b, "Unique campaigns: %s\n", formatter.StatValue(s.UniqueCampaigns))
		fmt.Fprintf(&b, "Unique ad sets:   %s\n", formatter.StatValue(s.UniqueAdsets))
		fmt.Fprintf(&b, "Total spend:      %s\n", formatter.StatValue(s.TotalSpend))
	} else {
		b.WriteString("\n" + styles.help.Render("No stats yet") + "\n")
	}
	if si := p.SheetIntegration; si != nil {
		fmt.Fprintf(&b, "\nSheet: %s", si.SpreadsheetID)
		if si.WorksheetTitle != "" {
			fmt.Fprintf(&b, " / %s", si.WorksheetTitle)
		}
		b.WriteString("\n")
	}
	if m.deps.Updating.Is(p.ID) {
		b.WriteString(styles.warn.Render("Refreshing...") + "\n")
	}
	if m.deps.Paused.HasPausedJob(p.ID) {
		b.WriteString(styles.paused.Render("Sheet sync paused: reconnect Google Sheets") + "\n")
	}
	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s", b.String(), helpView)
}

func (m *Model) renderRefresh() string {
	title := styles.title.Render("Refreshing Packs")

	var phase string
	switch m.progress.Phase {
	case tasks.RefreshPacks:
		phase = fmt.Sprintf("Refreshing packs (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.SyncSheets:
		phase = "Syncing sheets..."
	default:
		phase = "Starting..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Refresh failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	r := m.result
	title := styles.ok.Render("✓ Refresh Complete")
	if r.Total == 0 {
		title = styles.warn.Render("Nothing to refresh")
	}
	info := fmt.Sprintf("\nTotal: %d\nSucceeded: %d\nPaused: %d\nSkipped: %d\nFailed: %d",
		r.Total, r.Succeeded, r.Paused, r.Skipped, r.Failed)

	var failed string
	if r.Failed > 0 {
		failed = "\n\n" + styles.warn.Render("Failed packs:")
		for _, res := range r.Results {
			if res.Error != nil && !tasks.IsBusy(res.Error) {
				failed += fmt.Sprintf("\n  • %s: %v", res.PackName, res.Error)
			}
		}
	}

	return fmt.Sprintf("%s%s%s\n\n%s", title, info, failed, helpView)
}

func (m *Model) renderJobs() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.dismiss, m.keys.resume, m.keys.back, m.keys.quit})
	out := m.jobList.View()
	if len(m.jobList.Items()) == 0 {
		out = styles.title.Render(m.jobList.Title) + "\n" + styles.help.Render("No paused jobs")
	}
	if m.status != "" {
		out += "\n" + m.status
	}
	return fmt.Sprintf("%s\n\n%s", out, helpView)
}
