// Package narrator optionally rewrites story notices through Gemini
// before they reach the terminal. It decorates an engine.Notifier: a
// single worker preserves notice order, and any failure (no API key,
// a full queue, a generation error) forwards the plain line instead.
// The game never depends on the narrator being there.
package narrator

import (
	"bytes"
	"context"
	_ "embed"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ErebusAres/DriftShell-sub000/internal/engine"
)

//go:embed prompts/embellish.txt
var embellishPrompt string

const (
	defaultModel    = "gemini-2.5-flash"
	generateTimeout = 10 * time.Second
	queueDepth      = 64
)

// Config selects the narrator's model.
type Config struct {
	// APIKey enables generation. Empty disables the narrator; notices
	// pass through untouched.
	APIKey string

	// Model names the Gemini model. Empty means the default.
	Model string
}

type promptData struct {
	Speaker string
	Line    string
}

// Narrator forwards notices to next, rewriting story lines when a
// model is configured.
type Narrator struct {
	next engine.Notifier
	log  *slog.Logger

	client *genai.Client
	model  *genai.GenerativeModel
	tmpl   *template.Template

	queue  chan engine.Notice
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a narrator in front of next. Without an API key the
// narrator is a plain pass-through and Close is a no-op.
func New(ctx context.Context, cfg Config, next engine.Notifier, log *slog.Logger) (*Narrator, error) {
	if log == nil {
		log = slog.Default()
	}
	nr := &Narrator{next: next, log: log}
	if cfg.APIKey == "" {
		log.Info("narrator disabled, story lines pass through plain")
		return nr, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	name := cfg.Model
	if name == "" {
		name = defaultModel
	}
	tmpl, err := template.New("embellish").Parse(embellishPrompt)
	if err != nil {
		client.Close()
		return nil, err
	}

	nr.client = client
	nr.model = client.GenerativeModel(name)
	nr.tmpl = tmpl
	nr.queue = make(chan engine.Notice, queueDepth)
	nr.done = make(chan struct{})
	nr.ctx, nr.cancel = context.WithCancel(ctx)
	go nr.run()

	log.Info("narrator enabled", "model", name)
	return nr, nil
}

// Notify implements engine.Notifier. It never blocks: when the rewrite
// queue is full the plain line goes straight through, even though that
// can reorder it against lines still being rewritten.
func (nr *Narrator) Notify(n engine.Notice) {
	if nr.queue == nil {
		nr.next.Notify(n)
		return
	}
	select {
	case nr.queue <- n:
	default:
		nr.next.Notify(n)
	}
}

// Close drains the queue and releases the client. Only call after the
// engine producing notices has shut down.
func (nr *Narrator) Close() {
	if nr.queue == nil {
		return
	}
	nr.cancel()
	close(nr.queue)
	<-nr.done
	nr.client.Close()
}

func (nr *Narrator) run() {
	defer close(nr.done)
	for n := range nr.queue {
		nr.next.Notify(nr.rewrite(n))
	}
}

// rewrite sends a story line through the model. Anything going wrong
// returns the notice unchanged.
func (nr *Narrator) rewrite(n engine.Notice) engine.Notice {
	if n.Kind != engine.NoticeStory {
		return n
	}

	var buf bytes.Buffer
	if err := nr.tmpl.Execute(&buf, promptData{Speaker: n.Speaker, Line: n.Text}); err != nil {
		nr.log.Warn("narrator prompt failed", "error", err)
		return n
	}

	ctx, cancel := context.WithTimeout(nr.ctx, generateTimeout)
	defer cancel()
	resp, err := nr.model.GenerateContent(ctx, genai.Text(buf.String()))
	if err != nil {
		nr.log.Warn("narrator generation failed", "error", err)
		return n
	}
	raw, ok := firstText(resp)
	if !ok {
		return n
	}
	line := cleanLine(raw)
	if line == "" {
		return n
	}

	out := n
	out.Text = line
	return out
}

// firstText pulls the first text part out of a generation response.
func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", false
	}
	text, ok := content.Parts[0].(genai.Text)
	if !ok {
		return "", false
	}
	return string(text), true
}

// cleanLine strips code fences, surrounding quotes, and everything past
// the first line of a model response.
func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, `"`)
		if line != "" {
			return line
		}
	}
	return ""
}
