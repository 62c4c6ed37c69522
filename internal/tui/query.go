package tui

// QueryMsg represents messages that the query line handles
type QueryMsg interface {
	isQueryMsg()
}

type StartQueryMsg struct{}

func (StartQueryMsg) isQueryMsg() {}

type UpdateQueryInputMsg struct {
	Input string
}

func (UpdateQueryInputMsg) isQueryMsg() {}

type ApplyQueryMsg struct{}

func (ApplyQueryMsg) isQueryMsg() {}

type CancelQueryMsg struct{}

func (CancelQueryMsg) isQueryMsg() {}

type ClearQueryMsg struct{}

func (ClearQueryMsg) isQueryMsg() {}

// QueryModel holds the search line. Input is what is being typed, Applied
// is the query the list currently shows.
type QueryModel struct {
	Active  bool
	Input   string
	Applied string
}

// NewQueryModel creates an inactive query line showing recent history
func NewQueryModel() QueryModel {
	return QueryModel{}
}

// Update applies a query message
func (q *QueryModel) Update(msg QueryMsg) {
	switch m := msg.(type) {
	case StartQueryMsg:
		q.Active = true
		q.Input = q.Applied
	case UpdateQueryInputMsg:
		q.Input = m.Input
	case ApplyQueryMsg:
		q.Applied = q.Input
		q.Active = false
	case CancelQueryMsg:
		q.Input = ""
		q.Active = false
	case ClearQueryMsg:
		q.Input = ""
		q.Applied = ""
		q.Active = false
	}
}

// Backspace drops the last rune of the input
func (q *QueryModel) Backspace() {
	runes := []rune(q.Input)
	if len(runes) > 0 {
		q.Update(UpdateQueryInputMsg{Input: string(runes[:len(runes)-1])})
	}
}
