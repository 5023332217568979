package world

import "strings"

// Well-known flag tokens. Content and engine code reference these instead
// of scattering string literals; the loader rejects content that uses a
// token outside this table.
const (
	// FlagHeatTaught marks the one-time heat/trust explainer as shown.
	FlagHeatTaught FlagID = "tutorial:heat"
	// FlagSignalTraced is minted when the vault gives up the trace route.
	FlagSignalTraced FlagID = "signal:traced"
	// FlagChantComplete is minted when the chant is reconstructed whole.
	FlagChantComplete FlagID = "chant:complete"
	// FlagWardenGrace marks the warden's one favor as spent.
	FlagWardenGrace FlagID = "warden:grace"
	// FlagWyrmProfiled marks the wyrm's first read of the player.
	FlagWyrmProfiled FlagID = "wyrm:profiled"
	// FlagCoreReady is the endgame signal fired by the core host.
	FlagCoreReady FlagID = "core:ready"
)

// Dynamic flag families. Tokens under these prefixes are minted at runtime
// with a content-derived suffix.
const (
	// PrefixFragment marks a recovered chant fragment, one per file.
	PrefixFragment = "chant:fragment:"
	// PrefixCorruption marks a corruption tier; the count of these is the
	// corruption level.
	PrefixCorruption = "corruption:"
	// PrefixDecoded marks a ciphered file as decoded, keyed loc/file.
	PrefixDecoded = "decoded:"
)

// Items and upgrades with engine-level behavior. Other items are inert
// inventory; these ones unlock mechanics.
const (
	// ItemCipherLens lets the player decode ciphered files.
	ItemCipherLens ItemID = "cipher-lens"
	// UpgradeTraceDampener widens the trace meter.
	UpgradeTraceDampener UpgradeID = "trace-dampener"
	// UpgradeSiphonRig installs the passive-income siphon.
	UpgradeSiphonRig UpgradeID = "siphon-rig"
)

var knownFlags = map[FlagID]string{
	FlagHeatTaught:    "risk model teach-in shown",
	FlagSignalTraced:  "cipher vault surrendered the trace route",
	FlagChantComplete: "chant of statics reconstructed",
	FlagWardenGrace:   "warden favor spent",
	FlagWyrmProfiled:  "wyrm has read the player once",
	FlagCoreReady:     "core host standing open",
}

var flagPrefixes = map[string]string{
	PrefixFragment:   "recovered chant fragments",
	PrefixCorruption: "corruption tiers",
	PrefixDecoded:    "decoded cipher files",
}

// KnownFlag reports whether f is in the vocabulary, either as an exact
// token or under a dynamic prefix.
func KnownFlag(f FlagID) bool {
	if _, ok := knownFlags[f]; ok {
		return true
	}
	for prefix := range flagPrefixes {
		if strings.HasPrefix(string(f), prefix) {
			return true
		}
	}
	return false
}
