// Package imagepipe resolves poster images through an escalating chain: the
// raw URL, each image proxy in turn, one keyword search, then a placeholder.
package imagepipe

// Status is the state of one image
type Status int

const (
	// Idle: not in view yet, nothing requested
	Idle Status = iota
	Loading
	Searching
	Loaded
	Placeholder
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Searching:
		return "searching"
	case Loaded:
		return "loaded"
	case Placeholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// CommandKind tells the driver what to do next
type CommandKind int

const (
	None CommandKind = iota
	Load
	Search
)

// Command is the machine's single outstanding request
type Command struct {
	Kind    CommandKind
	URL     string
	Keyword string
}

// EventKind is an input to the machine
type EventKind int

const (
	InView EventKind = iota
	LoadOK
	LoadFailed
	SearchResult
)

// Event is an input; URL is set for SearchResult (empty when nothing was found)
type Event struct {
	Kind EventKind
	URL  string
}

// Machine is the per-image state machine. Stage 0 is the raw URL, 1..K the
// proxy rewrites and K+1 the keyword search. It performs no I/O.
type Machine struct {
	rw *Rewriter

	src      string
	keyword  string
	inView   bool
	status   Status
	stage    int
	current  string
	searched bool
	attempts int
	searches int
}

// NewMachine creates an idle machine
func NewMachine(rw *Rewriter) *Machine {
	return &Machine{rw: rw}
}

// Status returns the current state
func (m *Machine) Status() Status { return m.status }

// Stage returns the current escalation stage
func (m *Machine) Stage() int { return m.stage }

// Current returns the URL being loaded or shown ("" for the placeholder)
func (m *Machine) Current() string { return m.current }

// Attempts counts Load commands issued for the current source
func (m *Machine) Attempts() int { return m.attempts }

// Searches counts Search commands issued for the current source
func (m *Machine) Searches() int { return m.searches }

// SetSource resets the machine for a new image. Work starts immediately when
// the image is already in view or priority is set.
func (m *Machine) SetSource(src, keyword string, priority bool) Command {
	m.src = m.rw.Normalize(src)
	m.keyword = keyword
	m.status = Idle
	m.stage = 0
	m.current = ""
	m.searched = false
	m.attempts = 0
	m.searches = 0
	m.inView = m.inView || priority

	if !m.inView {
		return Command{}
	}
	return m.start()
}

// Handle feeds an event. Events that do not fit the current state are ignored.
func (m *Machine) Handle(ev Event) Command {
	switch ev.Kind {
	case InView:
		if m.inView {
			return Command{}
		}
		m.inView = true
		if m.status == Idle {
			return m.start()
		}

	case LoadOK:
		if m.status == Loading {
			m.status = Loaded
		}

	case LoadFailed:
		if m.status != Loading {
			return Command{}
		}
		m.stage++
		if m.stage <= m.rw.Stages() && !m.rw.IsBad(m.src) {
			return m.load(m.rw.Proxy(m.stage-1, m.src))
		}
		return m.fallback()

	case SearchResult:
		if m.status != Searching {
			return Command{}
		}
		if ev.URL == "" {
			return m.giveUp()
		}
		m.src = m.rw.Normalize(ev.URL)
		return m.start()
	}

	return Command{}
}

func (m *Machine) start() Command {
	m.stage = 0
	if m.rw.IsBad(m.src) {
		return m.fallback()
	}
	return m.load(m.src)
}

func (m *Machine) load(u string) Command {
	m.status = Loading
	m.current = u
	m.attempts++
	return Command{Kind: Load, URL: u}
}

// fallback moves to the keyword stage; each source gets one search
func (m *Machine) fallback() Command {
	m.stage = m.rw.Stages() + 1
	if m.keyword == "" || m.searched {
		return m.giveUp()
	}
	m.searched = true
	m.searches++
	m.status = Searching
	m.current = ""
	return Command{Kind: Search, Keyword: m.keyword}
}

func (m *Machine) giveUp() Command {
	m.status = Placeholder
	m.current = ""
	return Command{}
}
