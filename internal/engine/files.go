package engine

import (
	"fmt"
	"strings"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// FileView is the renderable form of a host file.
type FileView struct {
	Name string
	Type world.FileType

	// Body is the display text. For a ciphered file that has not been
	// decoded it is the rotated glyphs, not the plaintext.
	Body string

	// Ciphered is set when Body is showing rotated glyphs.
	Ciphered bool
}

// ReadFile renders a text or script file on the current host. Ciphered
// text shows as rotated glyphs until decoded. Item and upgrade payloads
// are not readable; they have to be pulled.
func (e *Engine) ReadFile(name string) (FileView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loc := e.mustLoc(e.progress.Location)
	f, ok := loc.Files[name]
	if !ok {
		return FileView{}, apperrors.New(apperrors.CodeFileNotFound,
			fmt.Sprintf("no file %q on %s", name, loc.ID))
	}
	switch f.Type {
	case world.FileText, world.FileScript:
	default:
		return FileView{}, apperrors.New(apperrors.CodeFileNotReadable,
			fmt.Sprintf("%s is a payload, not text", name))
	}

	v := FileView{Name: name, Type: f.Type, Body: f.Content}
	if f.Cipher && !e.progress.Flags.Has(decodedFlag(loc.ID, name)) {
		v.Body = rot13(f.Content)
		v.Ciphered = true
	}
	return v, nil
}

// DecodeFile runs the cipher lens over a ciphered file on the current
// host, granting whatever the plaintext carries. Decoding is remembered
// per file, so the plain text reads back afterwards.
func (e *Engine) DecodeFile(name string) (FileView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loc := e.mustLoc(e.progress.Location)
	f, ok := loc.Files[name]
	if !ok {
		return FileView{}, apperrors.New(apperrors.CodeFileNotFound,
			fmt.Sprintf("no file %q on %s", name, loc.ID))
	}
	if !f.Cipher {
		return FileView{}, apperrors.New(apperrors.CodeFileNotReadable,
			fmt.Sprintf("%s is not ciphered", name))
	}
	if !e.progress.Inventory.Has(world.ItemCipherLens) {
		return FileView{}, apperrors.New(apperrors.CodeFileNotReadable,
			"the glyphs swim. you need a cipher lens")
	}

	if e.grantFlag(decodedFlag(loc.ID, name)) {
		for _, g := range f.Grants {
			e.grantFlag(g)
		}
		e.say(NoticeReward, fmt.Sprintf("lens bites. %s resolves into plaintext.", name))
		e.log.Info("file decoded", "location", loc.ID, "file", name)
	}
	return FileView{Name: name, Type: f.Type, Body: f.Content}, nil
}

// Pull starts a timed transfer of an item or upgrade payload from the
// current host. The transfer completes on its own a few seconds later;
// a forced disconnect kills it mid-stream. Transfers are frozen while a
// lockout is active.
func (e *Engine) Pull(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	if p.LockedOut(e.clock()) {
		return apperrors.New(apperrors.CodeUploadLockout, "transfers frozen under lockout")
	}
	loc := e.mustLoc(p.Location)
	f, ok := loc.Files[name]
	if !ok {
		return apperrors.New(apperrors.CodeFileNotFound,
			fmt.Sprintf("no file %q on %s", name, loc.ID))
	}
	switch f.Type {
	case world.FileItem, world.FileUpgrade:
	default:
		return apperrors.New(apperrors.CodeFileNotPullable,
			fmt.Sprintf("%s is readable, not pullable", name))
	}
	key := downloadKey(loc.ID, name)
	if _, running := e.downloads[key]; running {
		return apperrors.New(apperrors.CodeDownloadInProgress,
			fmt.Sprintf("transfer already running for %s", name))
	}

	e.downloads[key] = e.sched.After(e.tun.PullDuration, func() {
		e.completePull(loc.ID, name)
	})
	e.say(NoticeSystem, fmt.Sprintf("pulling %s ...", name))
	e.log.Debug("transfer started", "location", loc.ID, "file", name)
	return nil
}

// completePull lands a finished transfer. The download entry doubles as
// the liveness check: a forced disconnect clears it, and a cleared entry
// means the payload was lost with the carrier.
func (e *Engine) completePull(locID world.LocationID, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := downloadKey(locID, name)
	if _, live := e.downloads[key]; !live {
		return
	}
	delete(e.downloads, key)

	loc, ok := e.world.Location(locID)
	if !ok {
		return
	}
	f, ok := loc.Files[name]
	if !ok {
		return
	}
	switch f.Type {
	case world.FileItem:
		if e.grantItem(f.Item) {
			e.say(NoticeReward, fmt.Sprintf("pull complete :: %s secured.", f.Item))
		} else {
			e.say(NoticeSystem, fmt.Sprintf("pull complete :: %s (already held).", f.Item))
		}
	case world.FileUpgrade:
		e.applyUpgrade(f.Upgrade)
	}
	e.log.Info("transfer complete", "location", locID, "file", name)
}

// applyUpgrade installs an upgrade's mechanical effect.
func (e *Engine) applyUpgrade(u world.UpgradeID) {
	p := e.progress
	if !p.Upgrades.Add(u) {
		e.say(NoticeSystem, fmt.Sprintf("%s already installed.", u))
		return
	}
	switch u {
	case world.UpgradeTraceDampener:
		p.TraceMax += 2
		e.say(NoticeReward, fmt.Sprintf("trace dampener online. the meter stretches to %d.", p.TraceMax))
	case world.UpgradeSiphonRig:
		p.Siphon.Installed = true
		e.say(NoticeReward, "siphon rig bolted to the deck. `siphon on` to bleed credits.")
	default:
		e.log.Warn("unknown upgrade", "upgrade", u)
		e.say(NoticeReward, fmt.Sprintf("%s installed.", u))
	}
}

func downloadKey(loc world.LocationID, name string) string {
	return string(loc) + "/" + name
}

func decodedFlag(loc world.LocationID, name string) world.FlagID {
	return world.FlagID(world.PrefixDecoded + string(loc) + "/" + name)
}

// rot13 is the display mangle for ciphered files.
func rot13(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			r = 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			r = 'A' + (r-'A'+13)%26
		}
		b.WriteRune(r)
	}
	return b.String()
}
