package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Breach errors
	CodeBreachLockoutActive    Code = "BREACH_LOCKOUT_ACTIVE"
	CodeBreachUnknownLocation  Code = "BREACH_UNKNOWN_LOCATION"
	CodeBreachNotDiscovered    Code = "BREACH_NOT_DISCOVERED"
	CodeBreachAlreadyUnlocked  Code = "BREACH_ALREADY_UNLOCKED"
	CodeBreachRequirements     Code = "BREACH_REQUIREMENTS_UNMET"
	CodeBreachRegionLocked     Code = "BREACH_REGION_LOCKED"
	CodeBreachAlreadyBreaching Code = "BREACH_ALREADY_BREACHING"
	CodeBreachNoneActive       Code = "BREACH_NONE_ACTIVE"
	CodeBreachEmptyAnswer      Code = "BREACH_EMPTY_ANSWER"

	// Access/travel errors
	CodeAccessRegionLocked Code = "ACCESS_REGION_LOCKED"
	CodeTravelNotUnlocked  Code = "TRAVEL_NOT_UNLOCKED"
	CodeTravelUnknown      Code = "TRAVEL_UNKNOWN_LOCATION"

	// File/download errors
	CodeFileNotFound       Code = "FILE_NOT_FOUND"
	CodeFileNotReadable    Code = "FILE_NOT_READABLE"
	CodeFileNotPullable    Code = "FILE_NOT_PULLABLE"
	CodeDownloadInProgress Code = "DOWNLOAD_IN_PROGRESS"
	CodeUploadLockout      Code = "UPLOAD_LOCKOUT_ACTIVE"

	// Script errors
	CodeScriptNotFound Code = "SCRIPT_NOT_FOUND"
	CodeScriptRuntime  Code = "SCRIPT_RUNTIME_FAILURE"

	// Siphon errors
	CodeSiphonNotInstalled Code = "SIPHON_NOT_INSTALLED"
	CodeSiphonActive       Code = "SIPHON_ALREADY_ACTIVE"

	// Chant errors
	CodeChantEmpty     Code = "CHANT_EMPTY"
	CodeChantComplete  Code = "CHANT_ALREADY_COMPLETE"
	CodeChantFragments Code = "CHANT_FRAGMENTS_MISSING"

	// Content/state errors
	CodeContentInvalid  Code = "CONTENT_INVALID"
	CodeSnapshotInvalid Code = "SNAPSHOT_INVALID"

	// Save slot errors
	CodeSaveNotFound Code = "SAVE_NOT_FOUND"
	CodeSaveInvalid  Code = "SAVE_INVALID"
)

// Hint maps codes to player-facing terminal lines. Dynamic detail
// (which items are missing, which region is sealed) rides in Metadata
// and is rendered by the caller alongside this line.
func (c Code) Hint() string {
	switch c {
	case CodeBreachLockoutActive:
		return "countermeasure lockout active. the net is watching; wait it out."
	case CodeBreachUnknownLocation:
		return "no such host on any known route."
	case CodeBreachNotDiscovered:
		return "host not mapped. scan from an adjacent node first."
	case CodeBreachAlreadyUnlocked:
		return "host already answers to your handle."
	case CodeBreachRequirements:
		return "the lock refuses you. something is missing."
	case CodeBreachRegionLocked, CodeAccessRegionLocked:
		return "the route dissolves into static. this sector does not answer yet."
	case CodeBreachAlreadyBreaching:
		return "a breach is already open. disconnect before probing elsewhere."
	case CodeBreachNoneActive:
		return "no breach in progress."
	case CodeBreachEmptyAnswer:
		return "the lock waits. say something."
	case CodeTravelNotUnlocked:
		return "host refuses the connection. breach it first."
	case CodeTravelUnknown:
		return "no route to that address."
	case CodeFileNotFound:
		return "no such file on this host."
	case CodeFileNotReadable:
		return "file is not plain text. pull it instead."
	case CodeFileNotPullable:
		return "nothing to pull from that file. just read it."
	case CodeDownloadInProgress:
		return "transfer already running for that file."
	case CodeUploadLockout:
		return "transfers frozen under lockout."
	case CodeScriptNotFound:
		return "no script by that name here."
	case CodeScriptRuntime:
		return "script died mid-run."
	case CodeSiphonNotInstalled:
		return "no siphon rig installed on this deck."
	case CodeSiphonActive:
		return "siphon is already bleeding credits."
	case CodeChantEmpty:
		return "reconstruct what? give me the phrase."
	case CodeChantComplete:
		return "the chant is already whole."
	case CodeChantFragments:
		return "the shards you hold are too few. keep listening."
	case CodeSnapshotInvalid:
		return "save data is corrupt or from another life."
	case CodeSaveNotFound:
		return "no save by that name."
	case CodeSaveInvalid:
		return "save names are letters, digits, dashes. nothing fancier."
	default:
		return "something glitched. try again."
	}
}
