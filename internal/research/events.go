package research

// EventKind tells what happened to a stage.
type EventKind int

const (
	StageStarted EventKind = iota
	StageFinished
	StageFailed
	StageSkipped
)

func (k EventKind) String() string {
	switch k {
	case StageStarted:
		return "started"
	case StageFinished:
		return "finished"
	case StageFailed:
		return "failed"
	case StageSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Stage names reported to observers besides the catalog names.
const (
	StageCover     = "Cover image"
	StageAuthor    = "Wikidata author"
	StagePublisher = "Wikidata publisher"
	StageScraping  = "Ratings and sales"
	StageReconcile = "Reconcile"
)

// Event reports stage progress. Errors holds the messages a failed stage
// added to the result.
type Event struct {
	Kind   EventKind
	Stage  string
	Errors []string
}

// Observer receives events synchronously from the orchestrating goroutine.
type Observer func(Event)
