package tui

import (
	"crewgrid/internal/feed"
	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalAddPerson
	modalAddRole
	modalConfirmRemove
)

type confirmModalFocus int

const (
	confirmFocusConfirm confirmModalFocus = iota
	confirmFocusCancel
)

// snapshotMsg carries the result of a full grid load (startup, manual reload,
// and post-reconnect resync).
type snapshotMsg struct {
	snap *model.GridSnapshot
	err  error
}

// commitDoneMsg reports how a persisted batch resolved. The engine state for
// the batch is settled by Complete when this message is handled.
type commitDoneMsg struct {
	batchID  int
	projects []string
	err      error
}

type totalsMsg struct {
	totals map[string]model.ProjectHours
	err    error
}

// rowFetchedMsg answers a payload-less change event's refetch.
type rowFetchedMsg struct {
	row *model.AssignmentRow
	err error
}

type feedEventMsg struct{ ev model.ChangeEvent }

type feedStatusMsg struct{ status feed.Status }

// flushTickMsg fires the debounced reconciler flush; a tick whose seq no
// longer matches the queue generation is stale and ignored.
type flushTickMsg struct{ seq int }

type advisorMsg struct{ warnings []grid.Warning }

type noticeTickMsg struct{}

type rowAddedMsg struct {
	row *model.AssignmentRow
	err error
}

type rowRemovedMsg struct {
	rowID     string
	projectID string
	err       error
}
