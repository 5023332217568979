package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ErebusAres/DriftShell-sub000/internal/config"
	"github.com/ErebusAres/DriftShell-sub000/internal/engine"
	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/narrator"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/store"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

type model struct {
	engine    *engine.Engine
	saves     store.Store
	textInput textinput.Model
	viewport  viewport.Model
	lines     []string
	ready     bool
	width     int
	height    int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#005F5F")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9E9E9E"))

	storyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87D7D7"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8700"))

	rewardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87D787"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)
)

func NewModel(eng *engine.Engine, saves store.Store) model {
	ti := textinput.New()
	ti.Placeholder = "scan"
	ti.Focus()
	ti.CharLimit = 156
	ti.Width = 40

	m := model{
		engine:    eng,
		saves:     saves,
		textInput: ti,
	}
	m.lines = append(m.lines,
		storyStyle.Render("DRIFTSHELL // dead-grid terminal"),
		systemStyle.Render(fmt.Sprintf("jacked in as %s. type `help` for the toolkit.", eng.Handle())),
	)
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// noticeMsg carries an engine notice into the update loop. Notices come
// from engine timers and from commands running on their own goroutine,
// so they arrive through the program mailbox rather than a direct call.
type noticeMsg struct {
	notice engine.Notice
}

// cmdDoneMsg carries a finished command's direct output.
type cmdDoneMsg struct {
	lines []string
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.textInput.Value())
			m.textInput.Reset()
			if line == "" {
				return m, nil
			}
			m.push(userStyle.Render("> " + line))
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			return m, m.runCommand(line)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sizeViewport()

	case noticeMsg:
		m.push(renderNotice(msg.notice))

	case cmdDoneMsg:
		m.push(msg.lines...)
	}

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *model) push(lines ...string) {
	m.lines = append(m.lines, lines...)
	if m.ready {
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
	}
}

func (m *model) sizeViewport() {
	w := int(float64(m.width) * 0.75)
	h := m.height - 6
	if h < 1 {
		h = 1
	}
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// runCommand executes one input line off the update loop. Engine calls
// emit notices while holding the engine lock, and those notices land
// back in this program's mailbox, so they must never run on the
// goroutine that drains it.
func (m model) runCommand(line string) tea.Cmd {
	return func() tea.Msg {
		return cmdDoneMsg{lines: m.dispatch(line)}
	}
}

func (m model) dispatch(line string) []string {
	words := strings.Fields(line)
	verb := strings.ToLower(words[0])
	rest := words[1:]

	switch verb {
	case "help":
		return helpLines()

	case "status":
		return m.statusLines()

	case "scan":
		res := m.engine.Scan()
		if !res.Rapid && len(res.Revealed) == 0 && res.Pending == 0 {
			return []string{systemStyle.Render("the sweep comes back empty.")}
		}
		return nil

	case "enter":
		if len(rest) == 0 {
			return usage("enter <host>")
		}
		v, err := m.engine.Enter(world.LocationID(rest[0]))
		if err != nil {
			return renderErr(err)
		}
		return renderLocation(v)

	case "ls", "look":
		return renderLocation(m.engine.CurrentLocation())

	case "map":
		regions := m.engine.Atlas()
		if len(regions) == 0 {
			return []string{systemStyle.Render("the map is dark.")}
		}
		lines := []string{titleStyle.Render(":: the drift, as mapped")}
		for _, r := range regions {
			if !r.Open {
				lines = append(lines, warnStyle.Render(r.Name+"  [sealed]"))
				if len(r.Hosts) == 0 {
					lines = append(lines, helpStyle.Render("  something answers from behind the seal."))
				}
			} else {
				lines = append(lines, storyStyle.Render(r.Name))
			}
			for _, h := range r.Hosts {
				label := h.Title
				if label == "" {
					label = string(h.ID)
				}
				lines = append(lines, systemStyle.Render(fmt.Sprintf("  %-22s %-12s [%s]", label, h.ID, h.State)))
			}
		}
		return lines

	case "cat", "read":
		if len(rest) == 0 {
			return usage("cat <file>")
		}
		f, err := m.engine.ReadFile(rest[0])
		if err != nil {
			return renderErr(err)
		}
		return renderFile(f)

	case "pull":
		if len(rest) == 0 {
			return usage("pull <file>")
		}
		if err := m.engine.Pull(rest[0]); err != nil {
			return renderErr(err)
		}
		return nil

	case "decode":
		if len(rest) == 0 {
			return usage("decode <file>")
		}
		f, err := m.engine.DecodeFile(rest[0])
		if err != nil {
			return renderErr(err)
		}
		return renderFile(f)

	case "run":
		if len(rest) == 0 {
			return usage("run <script>")
		}
		res, err := m.engine.RunScript(rest[0])
		lines := make([]string, 0, len(res.Output)+1)
		for _, out := range res.Output {
			lines = append(lines, gameStyle.Render(out))
		}
		if err != nil {
			lines = append(lines, renderErr(err)...)
		}
		return lines

	case "breach", "probe", "hack":
		if len(rest) == 0 {
			return usage("breach <host>")
		}
		v, err := m.engine.StartBreach(world.LocationID(rest[0]))
		if err != nil {
			return renderErr(err)
		}
		if v.Unlocked {
			return nil
		}
		return []string{
			warnStyle.Render(fmt.Sprintf("lock %d of %d", v.LockIndex+1, v.LockTotal)),
			gameStyle.Render(v.Prompt),
		}

	case "answer", "crack":
		return m.submit(strings.Join(rest, " "))

	case "disconnect":
		if !m.engine.CancelActiveBreach() {
			return []string{helpStyle.Render("no breach to drop.")}
		}
		return nil

	case "reconstruct":
		res, err := m.engine.Reconstruct(strings.Join(rest, " "))
		if err != nil {
			return renderErr(err)
		}
		if res.Outcome == engine.ChantClose {
			return []string{systemStyle.Render(fmt.Sprintf("the static gap reads %d.", res.Distance))}
		}
		return nil

	case "wait":
		m.engine.Wait()
		return nil

	case "talk":
		if _, err := m.engine.Talk(); err != nil {
			return renderErr(err)
		}
		return nil

	case "siphon":
		if len(rest) == 0 {
			return usage("siphon on|off")
		}
		switch strings.ToLower(rest[0]) {
		case "on":
			if err := m.engine.SiphonOn(); err != nil {
				return renderErr(err)
			}
			return nil
		case "off":
			m.engine.SiphonOff()
			return nil
		default:
			return usage("siphon on|off")
		}

	case "save":
		slot := "quick"
		if len(rest) > 0 {
			slot = rest[0]
		}
		if err := m.saves.Save(slot, m.engine.Snapshot()); err != nil {
			return renderErr(err)
		}
		return []string{systemStyle.Render(fmt.Sprintf("state burned to slot %q.", slot))}

	case "load":
		slot := "quick"
		if len(rest) > 0 {
			slot = rest[0]
		}
		snap, err := m.saves.Load(slot)
		if err != nil {
			return renderErr(err)
		}
		m.engine.Restore(snap)
		lines := []string{systemStyle.Render(fmt.Sprintf("slot %q restored.", slot))}
		return append(lines, renderLocation(m.engine.CurrentLocation())...)

	case "saves":
		infos, err := m.saves.List()
		if err != nil {
			return renderErr(err)
		}
		if len(infos) == 0 {
			return []string{systemStyle.Render("no saved states.")}
		}
		lines := []string{titleStyle.Render(":: slots")}
		for _, info := range infos {
			lines = append(lines, systemStyle.Render(
				fmt.Sprintf("  %-12s %-12s %s", info.Slot, info.Handle,
					info.SavedAt.Local().Format("2006-01-02 15:04:05"))))
		}
		return lines

	default:
		// Mid-breach, anything that is not a command is an answer, so
		// the player can type straight at the lock.
		if st := m.engine.Status(); st.Breaching {
			return m.submit(line)
		}
		return []string{helpStyle.Render(fmt.Sprintf("no tool called %q. try `help`.", verb))}
	}
}

func (m model) submit(text string) []string {
	res, err := m.engine.SubmitAnswer(text)
	if err != nil {
		return renderErr(err)
	}
	if res.Outcome == engine.SubmitFailed && res.Hint != "" {
		return []string{helpStyle.Render(res.Hint)}
	}
	return nil
}

func (m model) statusLines() []string {
	st := m.engine.Status()
	lines := []string{
		titleStyle.Render(":: " + st.Handle),
		systemStyle.Render(fmt.Sprintf("host %s (%s)", st.Location, st.RegionName)),
		systemStyle.Render(fmt.Sprintf("trace %d/%d  heat %d/%d  trust %d  gc %d",
			st.Trace, st.TraceMax, st.Heat, st.HeatThreshold, st.TrustLevel, st.GC)),
	}
	if st.Breaching {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("breaching %s, lock %d of %d",
			st.BreachLocation, st.LockIndex+1, st.LockTotal)))
	}
	if st.LockedOutFor > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("locked out for %s",
			st.LockedOutFor.Round(time.Second))))
	}
	if st.SiphonOn {
		lines = append(lines, rewardStyle.Render("siphon is live"))
	}
	if st.StepCue != "" {
		lines = append(lines, storyStyle.Render(st.StepCue))
	}
	return lines
}

func helpLines() []string {
	rows := [][2]string{
		{"scan", "sweep the current host for linked hosts"},
		{"enter <host>", "jack into an unlocked host"},
		{"ls", "look around the current host"},
		{"map", "every region and host you've touched"},
		{"cat <file>", "read a file"},
		{"pull <file>", "download an item or upgrade"},
		{"decode <file>", "run the cipher lens over a file"},
		{"run <script>", "execute a lua tool"},
		{"breach <host>", "start cracking a locked host"},
		{"answer <text>", "feed the current lock (or just type it)"},
		{"disconnect", "drop the active breach"},
		{"reconstruct <phrase>", "speak the chant"},
		{"wait", "lie low and let the meters settle"},
		{"talk", "address the host's keeper"},
		{"siphon on|off", "toggle the credit siphon rig"},
		{"status", "meters and position"},
		{"save [slot]", "burn state to a slot"},
		{"load [slot]", "restore a slot"},
		{"saves", "list slots"},
		{"quit", "hang up"},
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, titleStyle.Render(":: toolkit"))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %s %s",
			gameStyle.Render(fmt.Sprintf("%-21s", r[0])),
			helpStyle.Render(r[1])))
	}
	return lines
}

func usage(form string) []string {
	return []string{helpStyle.Render("usage: " + form)}
}

func renderErr(err error) []string {
	lines := []string{errStyle.Render("!! " + err.Error())}
	if hint := apperrors.GetCode(err).Hint(); hint != "" {
		lines = append(lines, helpStyle.Render(hint))
	}
	return lines
}

func renderNotice(n engine.Notice) string {
	text := n.Text
	if n.Speaker != "" {
		text = n.Speaker + " :: " + text
	}
	switch n.Kind {
	case engine.NoticeStory:
		return storyStyle.Render(text)
	case engine.NoticeWarning:
		return warnStyle.Render(text)
	case engine.NoticeReward:
		return rewardStyle.Render(text)
	default:
		return systemStyle.Render(text)
	}
}

func renderLocation(v engine.LocationView) []string {
	lines := []string{titleStyle.Render(":: " + v.Title)}
	for _, d := range v.Desc {
		lines = append(lines, gameStyle.Render(d))
	}
	if len(v.Links) > 0 {
		lines = append(lines, systemStyle.Render("links:"))
		for _, l := range v.Links {
			label := l.Title
			if label == "" {
				label = string(l.ID)
			}
			lines = append(lines, systemStyle.Render(fmt.Sprintf("  %-22s [%s]", label, l.State)))
		}
	}
	if len(v.Files) > 0 {
		lines = append(lines, systemStyle.Render("files:"))
		for _, f := range v.Files {
			lines = append(lines, systemStyle.Render("  "+f))
		}
	}
	return lines
}

func renderFile(f engine.FileView) []string {
	lines := []string{titleStyle.Render(":: " + f.Name)}
	if f.Ciphered {
		lines = append(lines, warnStyle.Render("(ciphered; the glyphs crawl)"))
	}
	return append(lines, gameStyle.Render(f.Body))
}

func (m model) View() string {
	if !m.ready {
		return helpStyle.Render("\n  warming the wire...")
	}

	sidebarWidth := int(float64(m.width) * 0.23)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewport.View(),
		stateStyle.Width(sidebarWidth).Render(m.renderState()),
	)
	return fmt.Sprintf("%s\n\n%s\n%s",
		body,
		m.textInput.View(),
		helpStyle.Render("enter runs the line. esc hangs up."),
	)
}

func (m model) renderState() string {
	st := m.engine.Status()
	var b strings.Builder

	b.WriteString(titleStyle.Render("LOCATION") + "\n")
	b.WriteString(st.LocationTitle + "\n")
	b.WriteString(st.RegionName + "\n\n")

	b.WriteString(titleStyle.Render("METERS") + "\n")
	fmt.Fprintf(&b, "trace %d/%d\n", st.Trace, st.TraceMax)
	fmt.Fprintf(&b, "heat  %d/%d\n", st.Heat, st.HeatThreshold)
	fmt.Fprintf(&b, "trust %d\n", st.TrustLevel)
	fmt.Fprintf(&b, "gc    %d\n", st.GC)

	if st.Breaching {
		b.WriteString("\n" + titleStyle.Render("BREACH") + "\n")
		fmt.Fprintf(&b, "%s\nlock %d of %d\n", st.BreachLocation, st.LockIndex+1, st.LockTotal)
	}
	if st.LockedOutFor > 0 {
		b.WriteString("\n" + warnStyle.Render(fmt.Sprintf("LOCKOUT %s", st.LockedOutFor.Round(time.Second))) + "\n")
	}
	if st.SiphonOn {
		b.WriteString("\n" + rewardStyle.Render("SIPHON live") + "\n")
	}
	if st.StepCue != "" {
		b.WriteString("\n" + titleStyle.Render("DRIFT") + "\n")
		b.WriteString(st.StepCue + "\n")
	}
	return b.String()
}

// Relay forwards engine notices into a running program. The engine can
// emit before the program loop is up (a restored siphon ticks on its
// own schedule), so notices are queued and a pump goroutine hands them
// over once Bind supplies the program. Notify never blocks, which is
// what the engine's notifier contract demands.
type Relay struct {
	mu      sync.Mutex
	pending []engine.Notice
	wake    chan struct{}
	bound   chan struct{}
	program *tea.Program
}

func NewRelay() *Relay {
	r := &Relay{
		wake:  make(chan struct{}, 1),
		bound: make(chan struct{}),
	}
	go r.pump()
	return r
}

func (r *Relay) Notify(n engine.Notice) {
	r.mu.Lock()
	r.pending = append(r.pending, n)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Bind points the relay at its program. Call once, before Program.Run.
func (r *Relay) Bind(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
	close(r.bound)
}

func (r *Relay) pump() {
	<-r.bound
	for range r.wake {
		for {
			r.mu.Lock()
			if len(r.pending) == 0 {
				r.mu.Unlock()
				break
			}
			n := r.pending[0]
			r.pending = r.pending[1:]
			r.mu.Unlock()
			r.program.Send(noticeMsg{notice: n})
		}
	}
}

// Run blocks until the player quits. The relay must be the tail of the
// engine's notifier chain; Run binds it to the program it starts.
func Run(eng *engine.Engine, saves store.Store, relay *Relay) error {
	p := tea.NewProgram(NewModel(eng, saves), tea.WithAltScreen())
	relay.Bind(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run terminal: %w", err)
	}
	return nil
}

// Start wires a full session from the environment and runs it: config,
// save store, world, narrator, engine, terminal. It is the whole app
// for callers that do not need to inject anything.
func Start() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, closeLog, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer closeLog()

	var saves store.Store
	if cfg.SaveBackend == config.BackendSQLite {
		saves, err = store.NewSQLiteStore(cfg.SQLitePath)
	} else {
		saves, err = store.NewFileStore(cfg.SaveDir)
	}
	if err != nil {
		return err
	}
	defer saves.Close()

	w, err := world.Load()
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}

	relay := NewRelay()
	voice, err := narrator.New(context.Background(), narrator.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, relay, log)
	if err != nil {
		return fmt.Errorf("start narrator: %w", err)
	}

	eng := engine.New(w, state.New(w, cfg.Handle), engine.Options{
		Logger:   log,
		Notifier: voice,
	})

	runErr := Run(eng, saves, relay)

	// The narrator's Close must come after the engine stops emitting.
	eng.Close()
	voice.Close()
	return runErr
}
