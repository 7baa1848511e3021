package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPacksSynced MsgKind = iota
	MsgDetailLoaded
	MsgPackRefreshed
	MsgProgressUpdate
	MsgRefreshAllComplete
	MsgJobsResumed
)

type packsSynced struct {
	result *tasks.SyncResult
	err    error
}

type detailLoaded struct {
	packID string
	pack   *models.Pack
	err    error
}

type packRefreshed struct {
	packID string
	result *tasks.PackRefreshResult
	err    error
}

type refreshAllComplete struct {
	result *tasks.RefreshAllResult
	err    error
}

// packsSyncedMsg is the constructor for [MsgPacksSynced]
func packsSyncedMsg(result *tasks.SyncResult, err error) Msg {
	return Msg{kind: MsgPacksSynced, data: packsSynced{result, err}}
}

// detailLoadedMsg is the constructor for [MsgDetailLoaded]
func detailLoadedMsg(packID string, pack *models.Pack, err error) Msg {
	return Msg{kind: MsgDetailLoaded, data: detailLoaded{packID, pack, err}}
}

// packRefreshedMsg is the constructor for [MsgPackRefreshed]
func packRefreshedMsg(packID string, result *tasks.PackRefreshResult, err error) Msg {
	return Msg{kind: MsgPackRefreshed, data: packRefreshed{packID, result, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// refreshAllCompleteMsg is the constructor for [MsgRefreshAllComplete]
func refreshAllCompleteMsg(result *tasks.RefreshAllResult, err error) Msg {
	return Msg{kind: MsgRefreshAllComplete, data: refreshAllComplete{result, err}}
}

// jobsResumedMsg is the constructor for [MsgJobsResumed]
func jobsResumedMsg(result *tasks.ResumeResult) Msg {
	return Msg{kind: MsgJobsResumed, data: result}
}
