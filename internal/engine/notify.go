package engine

// NoticeKind classifies a notice for presentation.
type NoticeKind string

const (
	// NoticeSystem is terminal chrome: connection lines, transfer
	// status, lockout warnings.
	NoticeSystem NoticeKind = "system"

	// NoticeStory is narrative voice: step cues, region reveals, NPC
	// lines.
	NoticeStory NoticeKind = "story"

	// NoticeWarning is risk feedback: trace movement, heat, trust
	// drops.
	NoticeWarning NoticeKind = "warning"

	// NoticeReward is loot feedback: GC, items, upgrades, flags.
	NoticeReward NoticeKind = "reward"
)

// Notice is a fire-and-forget message from the engine to the
// presentation layer.
type Notice struct {
	Channel string
	Speaker string
	Text    string
	Kind    NoticeKind
}

// Notifier receives notices. Implementations must not call back into
// the engine and must not block; the engine holds its own lock while
// notifying.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notice)

// Notify calls f.
func (f NotifierFunc) Notify(n Notice) { f(n) }

func (e *Engine) notify(kind NoticeKind, channel, speaker, text string) {
	e.notifier.Notify(Notice{Channel: channel, Speaker: speaker, Text: text, Kind: kind})
}

func (e *Engine) say(kind NoticeKind, text string) {
	e.notify(kind, "net", "", text)
}
