// Package ui implements an interactive terminal pack dashboard using bubbletea's Elm architecture.
//
// Views:
//  1. [PackListView] : Browse packs with updating and paused badges
//  2. [PackDetailView] : Pack detail, fetched in the background and discarded if the view is left first
//  3. [RefreshView] : Progress of a bulk refresh
//  4. [ResultView] : Bulk refresh summary
//  5. [JobsView] : Paused sheet sync jobs, with dismiss and resume
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the [Msg] union type.
// Bulk refresh progress flows through a channel from [tasks.PackRefresher.RefreshAll].
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
