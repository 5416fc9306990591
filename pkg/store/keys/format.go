package keys

const (
	// notation dictionary for key formats:
	// conv  = conversation state
	// owner = owner namespace (guest:<session> or user:<user_id>)
	// sess  = session bookkeeping
	// All keys are lowercase; segments are separated by ":"
	// <...> = variable segment (e.g. <owner_key>)

	// fixed bookkeeping keys
	GuestSessionKey = "sess:guest:id"     // long-lived guest session id
	CurrentOwnerKey = "conv:owner:current" // pointer record naming the active owner

	// per-owner conversation payload
	ConversationKey = "conv:state:%s" // conv:state:<owner_key>

	// owner key prefixes
	OwnerGuestPrefix = "guest:"
	OwnerUserPrefix  = "user:"

	// iteration prefix over all persisted conversations (retention)
	ConversationPrefix = "conv:state:"

	// payload schema version; a mismatch on load means "no persisted state"
	PayloadVersion = 1
)
